package persistence

import (
	"errors"
	"strings"

	"github.com/erp/reconciler/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultChunkSize bounds the number of ids bound into one IN (...) list
const DefaultChunkSize = 500

// isPostgres reports whether row locks are available on db
func isPostgres(db *gorm.DB) bool {
	return db.Dialector != nil && db.Dialector.Name() == "postgres"
}

// lockForUpdate adds FOR UPDATE, optionally SKIP LOCKED, on postgres.
// SQLite serializes writers itself and has no row locks.
func lockForUpdate(db *gorm.DB, skipLocked bool) *gorm.DB {
	if !isPostgres(db) {
		return db
	}
	locking := clause.Locking{Strength: clause.LockingStrengthUpdate}
	if skipLocked {
		locking.Options = clause.LockingOptionsSkipLocked
	}
	return db.Clauses(locking)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern using ESCAPE '\'
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// inChunks calls fn for consecutive slices of at most size items
func inChunks[T any](items []T, size int, fn func([]T) error) error {
	if size <= 0 {
		size = DefaultChunkSize
	}
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		if err := fn(items[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// translateError maps gorm sentinel errors to domain errors
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return shared.ErrAlreadyExists
	default:
		return err
	}
}

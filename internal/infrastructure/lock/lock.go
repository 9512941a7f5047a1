// Package lock provides the single-writer pass lock that serializes
// reconciliation passes across goroutines and, with Redis, across processes.
package lock

import (
	"context"
	"time"
)

// Pass names. Every pass that writes the ledger takes the same lock so PO
// merges, acceptance merges and project reassignments never interleave.
const (
	LedgerPass = "ledger"
)

// Defaults used when the caller leaves a duration unset
const (
	DefaultTTL  = 5 * time.Minute
	DefaultWait = 30 * time.Second
)

// PassLocker hands out an exclusive lock per pass name. Acquire blocks for
// at most the configured wait and returns shared.ErrPassInProgress when the
// lock stays held by someone else.
type PassLocker interface {
	Acquire(ctx context.Context, name string) (release func(), err error)
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/erp/reconciler/internal/application/reconciliation"
	"github.com/erp/reconciler/internal/infrastructure/cache"
	csvimport "github.com/erp/reconciler/internal/infrastructure/import"
	"github.com/erp/reconciler/internal/infrastructure/lock"
	"github.com/erp/reconciler/internal/infrastructure/persistence"
	"github.com/erp/reconciler/internal/infrastructure/persistence/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
		check   func(t *testing.T, o options)
	}{
		{
			name: "ingest po",
			args: []string{"ingest", "po", "extract.csv"},
			check: func(t *testing.T, o options) {
				assert.Equal(t, commandIngest, o.Command)
				assert.Equal(t, "extract.csv", o.File)
			},
		},
		{
			name: "merge all",
			args: []string{"merge", "all"},
			check: func(t *testing.T, o options) {
				assert.Equal(t, kindAll, o.Kind)
				assert.Empty(t, o.BatchID)
			},
		},
		{
			name: "merge one batch",
			args: []string{"merge", "acceptances", "0191d7c4-8a2e-7b1c-9d3f-4e5a6b7c8d9e"},
			check: func(t *testing.T, o options) {
				assert.Equal(t, "0191d7c4-8a2e-7b1c-9d3f-4e5a6b7c8d9e", o.BatchID)
			},
		},
		{name: "missing kind", args: []string{"merge"}, wantErr: true},
		{name: "unknown command", args: []string{"export", "po"}, wantErr: true},
		{name: "unknown kind", args: []string{"merge", "invoices"}, wantErr: true},
		{name: "ingest without file", args: []string{"ingest", "po"}, wantErr: true},
		{name: "ingest all", args: []string{"ingest", "all", "x.csv"}, wantErr: true},
		{name: "batch id on all", args: []string{"merge", "all", "0191d7c4-8a2e-7b1c-9d3f-4e5a6b7c8d9e"}, wantErr: true},
		{name: "malformed batch id", args: []string{"merge", "po", "batch-1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var o options
			err := parseArgs(tt.args, &o)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, o)
		})
	}
}

func newTestService(t *testing.T) *reconciliation.Service {
	t.Helper()
	db := testdb.NewSeededSQLite(t)
	return reconciliation.NewService(
		persistence.NewGormTransactionScope(db),
		lock.NewMutexPassLocker(200*time.Millisecond),
		zap.NewNop(),
		reconciliation.WithResolverCache(cache.NewResolverCache()),
	)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRun_IngestAndMerge(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	poFile := writeFile(t, "po.csv", "PO Number,PO Line,Site Code,Unit Price,Qty,Publish Date,Payment Terms\n"+
		"4500001,1,NE-001,100,10,2024-01-10,AC1 80 | PAC 20\n"+
		"4500001,x,NE-002,100,10,2024-01-10,AC1 80 | PAC 20\n")

	var out bytes.Buffer
	err := run(ctx, svc, options{Command: commandIngest, Kind: kindPO, File: poFile, Merge: true}, &out)
	require.NoError(t, err)

	var s summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &s))
	require.NotNil(t, s.Ingest)
	assert.Equal(t, "po.csv", s.Ingest.File)
	assert.Equal(t, 1, s.Ingest.Ingested)
	assert.Equal(t, 1, s.Ingest.Rejected)
	require.Len(t, s.Merges, 1)
	assert.Equal(t, 1, s.Merges[0].Merged)

	accFile := writeFile(t, "acceptances.csv", "PO Number,PO Line,Shipment No,Accepted Qty,Acceptance Date\n"+
		"4500001,1,1,10,2024-03-05\n")
	out.Reset()
	require.NoError(t, run(ctx, svc, options{Command: commandIngest, Kind: kindAcceptances, File: accFile}, &out))

	out.Reset()
	require.NoError(t, run(ctx, svc, options{Command: commandMerge, Kind: kindAll}, &out))
	s = summary{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &s))
	require.Len(t, s.Merges, 2)
	assert.Equal(t, reconciliation.ReasonNoPendingRows, s.Merges[0].Reason)
	assert.Equal(t, 1, s.Merges[1].Updated)
}

func TestRun_Errors(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	err := run(ctx, svc, options{Command: commandIngest, Kind: kindPO, File: filepath.Join(t.TempDir(), "missing.csv")}, &bytes.Buffer{})
	assert.Error(t, err)

	noKeys := writeFile(t, "po.csv", "Site Code,Qty\nNE-001,1\n")
	err = run(ctx, svc, options{Command: commandIngest, Kind: kindPO, File: noKeys}, &bytes.Buffer{})
	assert.Error(t, err)

	err = run(ctx, svc, options{Command: commandMerge, Kind: kindPO, BatchID: "0191d7c4-8a2e-7b1c-9d3f-4e5a6b7c8d9e"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, reconciliation.ErrBatchNotFound)
}

func TestRun_ParserFlags(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	semicolons := writeFile(t, "po.csv", "PO Number;PO Line;Site Code;Unit Price;Qty;Publish Date;Payment Terms\n"+
		"4500002;1;NE-001;100;10;2024-01-10;AC1 80 | PAC 20\n")

	t.Run("default delimiter misses the headers", func(t *testing.T) {
		err := run(ctx, svc, options{Command: commandIngest, Kind: kindPO, File: semicolons}, &bytes.Buffer{})
		assert.Error(t, err)
	})

	t.Run("delimiter flag", func(t *testing.T) {
		var out bytes.Buffer
		err := run(ctx, svc, options{Command: commandIngest, Kind: kindPO, File: semicolons, Delimiter: ";"}, &out)
		require.NoError(t, err)
		var s summary
		require.NoError(t, json.Unmarshal(out.Bytes(), &s))
		assert.Equal(t, 1, s.Ingest.Ingested)
	})

	t.Run("invalid delimiter", func(t *testing.T) {
		err := run(ctx, svc, options{Command: commandIngest, Kind: kindPO, File: semicolons, Delimiter: ";;"}, &bytes.Buffer{})
		assert.ErrorIs(t, err, csvimport.ErrInvalidDelimiter)
	})

	t.Run("strict quotes", func(t *testing.T) {
		bareQuote := writeFile(t, "po.csv", "PO Number,PO Line,Site Code,Unit Price,Qty,Publish Date,Payment Terms\n"+
			"4500003,1,NE-0\"01,100,10,2024-01-10,AC1 80 | PAC 20\n")

		var lenient bytes.Buffer
		require.NoError(t, run(ctx, svc, options{Command: commandIngest, Kind: kindPO, File: bareQuote}, &lenient))
		var s summary
		require.NoError(t, json.Unmarshal(lenient.Bytes(), &s))
		assert.Equal(t, 1, s.Ingest.Ingested)

		var strict bytes.Buffer
		require.NoError(t, run(ctx, svc, options{Command: commandIngest, Kind: kindPO, File: bareQuote, StrictQuotes: true}, &strict))
		s = summary{}
		require.NoError(t, json.Unmarshal(strict.Bytes(), &s))
		assert.Zero(t, s.Ingest.Ingested)
		assert.NotEmpty(t, s.Ingest.Errors)
	})
}

func TestOptions_ReadOptions(t *testing.T) {
	opts, err := options{}.readOptions()
	require.NoError(t, err)
	assert.Len(t, opts, 1)

	opts, err = options{Delimiter: "tab", Sheet: "Q3"}.readOptions()
	require.NoError(t, err)
	assert.Len(t, opts, 2)

	_, err = options{Delimiter: `"`}.readOptions()
	assert.ErrorIs(t, err, csvimport.ErrInvalidDelimiter)
}

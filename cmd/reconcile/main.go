// Command reconcile stages a PO or acceptance extract and runs merge passes
// from the shell, without the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/erp/reconciler/internal/application/reconciliation"
	"github.com/erp/reconciler/internal/domain/batch"
	"github.com/erp/reconciler/internal/infrastructure/cache"
	"github.com/erp/reconciler/internal/infrastructure/config"
	csvimport "github.com/erp/reconciler/internal/infrastructure/import"
	"github.com/erp/reconciler/internal/infrastructure/lock"
	"github.com/erp/reconciler/internal/infrastructure/logger"
	"github.com/erp/reconciler/internal/infrastructure/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	commandIngest = "ingest"
	commandMerge  = "merge"

	kindPO          = "po"
	kindAcceptances = "acceptances"
	kindAll         = "all"
)

// maxRowErrors caps the row errors collected while reading a file
const maxRowErrors = 1000

type options struct {
	Command    string `validate:"required,oneof=ingest merge"`
	Kind       string `validate:"required,oneof=po acceptances all"`
	File       string `validate:"required_if=Command ingest"`
	BatchID    string `validate:"omitempty,uuid"`
	UploadedBy string `validate:"max=100"`
	Merge      bool
	MaxSize    int64 `validate:"gte=0"`

	Delimiter    string
	StrictQuotes bool
	Sheet        string `validate:"max=31"`
}

func main() {
	var (
		opts     options
		logLevel string
	)
	flag.StringVar(&opts.UploadedBy, "uploaded-by", "", "Uploader recorded on the batch (defaults to the configured uploader)")
	flag.BoolVar(&opts.Merge, "merge", false, "Run the merge pass for the ingested batch")
	flag.StringVar(&opts.Delimiter, "delimiter", "", `CSV field delimiter: one character or "tab" (default ",")`)
	flag.BoolVar(&opts.StrictQuotes, "strict-quotes", false, "Reject bare quotes inside unquoted CSV fields")
	flag.StringVar(&opts.Sheet, "sheet", "", "Worksheet to read from an XLSX file (default: the first sheet)")
	flag.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); defaults to the configured level")
	flag.Parse()

	if err := parseArgs(flag.Args(), &opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		printUsage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	opts.MaxSize = cfg.HTTP.MaxUploadSize

	if logLevel == "" {
		logLevel = cfg.Log.Level
	}
	log, err := logger.NewForEnvironment(cfg.App.Env, logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database,
		logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Database.LogLevel),
			logger.WithSlowThreshold(cfg.Database.SlowThreshold),
			logger.WithLargeResultThreshold(cfg.Database.LargeResultRows),
		))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	locker, redisClient, err := lock.NewFactory(cfg.Redis, cfg.Reconciliation, lock.WithLogger(log)).Create()
	if err != nil {
		log.Fatal("Failed to create pass lock", zap.Error(err))
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	service := reconciliation.NewService(
		persistence.NewGormTransactionScope(db.DB).WithChunkSize(cfg.Reconciliation.ChunkSize),
		locker, log,
		reconciliation.WithResolverCache(cache.NewResolverCache()),
		reconciliation.WithFetchLimit(cfg.Reconciliation.FetchLimit),
		reconciliation.WithDefaultUploader(cfg.Reconciliation.DefaultUploader),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, service, opts, os.Stdout); err != nil {
		log.Error("Reconcile failed", zap.String("command", opts.Command), zap.Error(err))
		os.Exit(1)
	}
}

// parseArgs fills the positional part of opts and validates the result.
//
//	ingest po|acceptances <file>
//	merge po|acceptances|all [batch-id]
func parseArgs(args []string, opts *options) error {
	if len(args) < 2 {
		return errors.New("command and kind are required")
	}
	opts.Command, opts.Kind = args[0], args[1]
	rest := args[2:]

	switch opts.Command {
	case commandIngest:
		if opts.Kind == kindAll {
			return errors.New("ingest needs po or acceptances")
		}
		if len(rest) > 0 {
			opts.File = rest[0]
		}
	case commandMerge:
		if len(rest) > 0 {
			if opts.Kind == kindAll {
				return errors.New("a batch id needs po or acceptances")
			}
			opts.BatchID = rest[0]
		}
	}

	return validator.New().Struct(opts)
}

// summary is what run prints, one JSON document per invocation
type summary struct {
	Ingest *ingestSummary                `json:"ingest,omitempty"`
	Merges []*reconciliation.MergeResult `json:"merges,omitempty"`
}

type ingestSummary struct {
	BatchID   uuid.UUID        `json:"batch_id"`
	File      string           `json:"file"`
	TotalRows int              `json:"total_rows"`
	Ingested  int              `json:"ingested_rows"`
	Rejected  int              `json:"rejected_rows"`
	Errors    []batch.RowError `json:"errors,omitempty"`
}

func run(ctx context.Context, service *reconciliation.Service, opts options, out io.Writer) error {
	var s summary

	switch opts.Command {
	case commandIngest:
		kind := batchKind(opts.Kind)
		ingest, err := ingestFile(ctx, service, kind, opts)
		if err != nil {
			return err
		}
		s.Ingest = ingest
		if opts.Merge {
			res, err := service.MergeBatch(ctx, kind, &ingest.BatchID)
			if err != nil {
				return fmt.Errorf("merge batch %s: %w", ingest.BatchID, err)
			}
			s.Merges = append(s.Merges, res)
		}

	case commandMerge:
		var batchID *uuid.UUID
		if opts.BatchID != "" {
			id := uuid.MustParse(opts.BatchID)
			batchID = &id
		}
		kinds := []batch.Kind{batch.KindPurchaseOrders, batch.KindAcceptances}
		if opts.Kind != kindAll {
			kinds = []batch.Kind{batchKind(opts.Kind)}
		}
		// acceptances need their POs merged first
		for _, kind := range kinds {
			res, err := service.MergeBatch(ctx, kind, batchID)
			if err != nil {
				return fmt.Errorf("merge %s: %w", kind, err)
			}
			s.Merges = append(s.Merges, res)
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

func ingestFile(ctx context.Context, service *reconciliation.Service, kind batch.Kind, opts options) (*ingestSummary, error) {
	f, err := os.Open(opts.File)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	readOpts, err := opts.readOptions()
	if err != nil {
		return nil, err
	}

	name := filepath.Base(opts.File)
	errs := csvimport.NewErrorCollection(maxRowErrors)
	table, err := csvimport.ReadTable(name, f, opts.MaxSize, errs, readOpts...)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	var (
		result *reconciliation.IngestResult
		total  int
	)
	switch kind {
	case batch.KindPurchaseOrders:
		mapped, err := csvimport.MapPurchaseOrders(table, errs)
		if err != nil {
			return nil, err
		}
		total = mapped.TotalRows
		result, err = service.IngestRawPOs(ctx, reconciliation.IngestPOInput{
			UploadedBy: opts.UploadedBy,
			FileName:   name,
			Lines:      mapped.Rows,
			Rejected:   errs.RejectedRows(),
			RowErrors:  errs.BatchErrors(),
		})
		if err != nil {
			return nil, err
		}
	default:
		mapped, err := csvimport.MapAcceptances(table, errs)
		if err != nil {
			return nil, err
		}
		total = mapped.TotalRows
		result, err = service.IngestRawAcceptances(ctx, reconciliation.IngestAcceptanceInput{
			UploadedBy: opts.UploadedBy,
			FileName:   name,
			Lines:      mapped.Rows,
			Rejected:   errs.RejectedRows(),
			RowErrors:  errs.BatchErrors(),
		})
		if err != nil {
			return nil, err
		}
	}

	return &ingestSummary{
		BatchID:   result.BatchID,
		File:      name,
		TotalRows: total,
		Ingested:  result.Count,
		Rejected:  result.Rejected,
		Errors:    errs.BatchErrors(),
	}, nil
}

// readOptions turns the parser flags into table reader options. Quotes
// stay lenient unless -strict-quotes is given.
func (o options) readOptions() ([]csvimport.ReadOption, error) {
	delimiter, err := csvimport.ParseDelimiter(o.Delimiter)
	if err != nil {
		return nil, err
	}
	readOpts := []csvimport.ReadOption{csvimport.WithCSVOptions(
		csvimport.WithDelimiter(delimiter),
		csvimport.WithLazyQuotes(!o.StrictQuotes),
	)}
	if o.Sheet != "" {
		readOpts = append(readOpts, csvimport.WithXLSXOptions(csvimport.WithSheet(o.Sheet)))
	}
	return readOpts, nil
}

func batchKind(kind string) batch.Kind {
	if kind == kindAcceptances {
		return batch.KindAcceptances
	}
	return batch.KindPurchaseOrders
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: reconcile [flags] <command> <kind> [arg]

Commands:
  ingest po <file>             Stage a PO extract (CSV or XLSX)
  ingest acceptances <file>    Stage an acceptance extract
  merge po [batch-id]          Merge pending PO rows
  merge acceptances [batch-id] Merge pending acceptance rows
  merge all                    Merge POs, then acceptances

Flags:`)
	flag.PrintDefaults()
}

package reconciliation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/erp/reconciler/internal/domain/batch"
	"github.com/erp/reconciler/internal/domain/ledger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// amountScale matches the decimal(18,4) staging columns
const amountScale = 4

// IngestRawPOs appends an upload of PO lines to the staging table under a
// new batch. Payment-term labels are normalized here, once.
func (s *Service) IngestRawPOs(ctx context.Context, in IngestPOInput) (*IngestResult, error) {
	if len(in.Lines) == 0 && in.Rejected == 0 {
		return nil, ErrEmptyUpload
	}

	b, err := batch.NewUploadBatch(batch.KindPurchaseOrders, in.FileName, s.uploader(in.UploadedBy))
	if err != nil {
		return nil, err
	}

	rows := make([]ledger.RawPOLine, len(in.Lines))
	for i, l := range in.Lines {
		batchID := b.ID
		rows[i] = ledger.RawPOLine{
			BatchID:              &batchID,
			UploadedBy:           b.UploadedBy,
			PONumber:             strings.TrimSpace(l.PONumber),
			LineNo:               l.LineNo,
			SiteCode:             strings.TrimSpace(l.SiteCode),
			CustomerProjectLabel: strings.TrimSpace(l.CustomerProjectLabel),
			ItemDescription:      strings.TrimSpace(l.ItemDescription),
			UnitPrice:            roundNull(l.UnitPrice),
			RequestedQty:         roundNull(l.RequestedQty),
			PublishDate:          utc(l.PublishDate),
			PaymentTermLabel:     strings.TrimSpace(l.PaymentTermLabel),
			PaymentTerm:          ledger.CategorizePaymentTerm(l.PaymentTermLabel),
		}
	}

	if err := s.ingest(ctx, b, len(rows), in.Rejected, in.RowErrors, func(repos TransactionalRepositories) error {
		return repos.RawPOs().CreateBatch(ctx, rows)
	}); err != nil {
		return nil, err
	}
	return &IngestResult{BatchID: b.ID, Count: len(rows), Rejected: in.Rejected}, nil
}

// IngestRawAcceptances appends an upload of acceptance lines under a new batch
func (s *Service) IngestRawAcceptances(ctx context.Context, in IngestAcceptanceInput) (*IngestResult, error) {
	if len(in.Lines) == 0 && in.Rejected == 0 {
		return nil, ErrEmptyUpload
	}

	b, err := batch.NewUploadBatch(batch.KindAcceptances, in.FileName, s.uploader(in.UploadedBy))
	if err != nil {
		return nil, err
	}

	rows := make([]ledger.RawAcceptanceLine, len(in.Lines))
	for i, l := range in.Lines {
		batchID := b.ID
		rows[i] = ledger.RawAcceptanceLine{
			BatchID:     &batchID,
			UploadedBy:  b.UploadedBy,
			PONumber:    strings.TrimSpace(l.PONumber),
			LineNo:      l.LineNo,
			ShipmentNo:  l.ShipmentNo,
			AcceptedQty: roundNull(l.AcceptedQty),
			ProcessedAt: utc(l.ProcessedAt),
		}
	}

	if err := s.ingest(ctx, b, len(rows), in.Rejected, in.RowErrors, func(repos TransactionalRepositories) error {
		return repos.RawAcceptances().CreateBatch(ctx, rows)
	}); err != nil {
		return nil, err
	}
	return &IngestResult{BatchID: b.ID, Count: len(rows), Rejected: in.Rejected}, nil
}

// ingest writes the batch and its rows in one transaction. The batch row is
// saved first since raw rows reference it.
func (s *Service) ingest(ctx context.Context, b *batch.UploadBatch, ingested, rejected int, rowErrors []batch.RowError, write func(TransactionalRepositories) error) error {
	if rejected < 0 {
		rejected = 0
	}
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := repos.Batches().Save(ctx, b); err != nil {
			return fmt.Errorf("failed to save upload batch: %w", err)
		}
		if ingested > 0 {
			if err := write(repos); err != nil {
				return fmt.Errorf("failed to write raw rows: %w", err)
			}
		}
		if err := b.RecordIngest(ingested+rejected, ingested, rowErrors); err != nil {
			return err
		}
		return repos.Batches().Save(ctx, b)
	})
	if err != nil {
		s.logger.Error("Upload ingestion failed",
			zap.String("kind", string(b.Kind)),
			zap.String("file_name", b.FileName),
			zap.Error(err),
		)
		return err
	}

	s.metrics.RecordIngest(ctx, string(b.Kind), ingested, rejected)
	s.logger.Info("Upload ingested",
		zap.String("batch_id", b.ID.String()),
		zap.String("kind", string(b.Kind)),
		zap.String("file_name", b.FileName),
		zap.String("uploaded_by", b.UploadedBy),
		zap.Int("ingested", ingested),
		zap.Int("rejected", rejected),
	)
	return nil
}

func roundNull(d decimal.NullDecimal) decimal.NullDecimal {
	if !d.Valid {
		return d
	}
	return decimal.NewNullDecimal(d.Decimal.Round(amountScale))
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

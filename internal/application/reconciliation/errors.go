package reconciliation

import (
	"context"
	"errors"

	"github.com/erp/reconciler/internal/domain/shared"
)

// Application errors
var (
	ErrEmptyUpload             = shared.NewDomainError("EMPTY_UPLOAD", "Upload contains no rows")
	ErrEmptySiteList           = shared.NewDomainError("EMPTY_SITE_LIST", "At least one site code is required")
	ErrProjectNotFound         = shared.NewDomainError("PROJECT_NOT_FOUND", "Internal project not found")
	ErrCustomerProjectNotFound = shared.NewDomainError("CUSTOMER_PROJECT_NOT_FOUND", "Customer project not found")
	ErrRuleNotFound            = shared.NewDomainError("RULE_NOT_FOUND", "Resolution rule not found")
	ErrLedgerEntryNotFound     = shared.NewDomainError("LEDGER_ENTRY_NOT_FOUND", "Ledger entry not found")
	ErrBatchNotFound           = shared.NewDomainError("BATCH_NOT_FOUND", "Upload batch not found")
	ErrInvalidStageFilter      = shared.NewDomainError("INVALID_STAGE", "Stage must be WAITING_AC, WAITING_PAC or PARTIAL_GAP")
)

// notFoundAs replaces a generic not-found error with a specific one
func notFoundAs(err, specific error) error {
	if errors.Is(err, shared.ErrNotFound) {
		return specific
	}
	return err
}

// errorReason returns the domain code of err for metrics attributes
func errorReason(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "CANCELED"
	}
	return "INTERNAL"
}

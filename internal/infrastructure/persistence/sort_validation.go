package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	if strings.ToUpper(strings.TrimSpace(orderDir)) == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// LedgerSortFields contains allowed sort fields for ledger listings
var LedgerSortFields = map[string]bool{
	"created_at":   true,
	"updated_at":   true,
	"po_id":        true,
	"po_number":    true,
	"site_code":    true,
	"publish_date": true,
	"line_value":   true,
	"date_ac_ok":   true,
	"date_pac_ok":  true,
}

// RemainingSortFields contains allowed sort fields for the outstanding view.
// "remaining" sorts by the computed gap.
var RemainingSortFields = map[string]bool{
	"po_id":        true,
	"site_code":    true,
	"publish_date": true,
	"line_value":   true,
	"remaining":    true,
}

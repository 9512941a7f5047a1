package project

import (
	"strings"

	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/google/uuid"
)

// SiteAllocation pins a site to an internal project, outranking every rule
type SiteAllocation struct {
	shared.BaseEntity
	SiteCode  string
	ProjectID uuid.UUID
}

// NewSiteAllocation creates a new manual site allocation
func NewSiteAllocation(siteCode string, projectID uuid.UUID) (*SiteAllocation, error) {
	siteCode = strings.TrimSpace(siteCode)
	if siteCode == "" {
		return nil, shared.NewDomainError("INVALID_SITE_CODE", "Site code cannot be empty")
	}
	if projectID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ALLOCATION", "Allocation project is required")
	}
	return &SiteAllocation{
		BaseEntity: shared.NewBaseEntity(),
		SiteCode:   siteCode,
		ProjectID:  projectID,
	}, nil
}

// NormalizeSiteCodes trims, drops blanks and de-duplicates site codes,
// preserving first-seen order
func NormalizeSiteCodes(sites []string) []string {
	seen := make(map[string]struct{}, len(sites))
	out := make([]string, 0, len(sites))
	for _, s := range sites {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

package project

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Snapshot is a consistent view of allocations and rules at a given
// resolution version
type Snapshot struct {
	Version      int64
	TBDProjectID uuid.UUID
	Allocations  map[string]uuid.UUID
	Rules        []Rule
}

// Resolver decides the internal project of a PO line. Precedence is manual
// site allocation, then the newest matching rule, then TBD. It never fails.
type Resolver struct {
	version     int64
	tbd         uuid.UUID
	allocations map[string]uuid.UUID
	rules       []Rule
}

// NewResolver builds a resolver over a snapshot. The snapshot is not retained.
func NewResolver(s Snapshot) *Resolver {
	rules := make([]Rule, len(s.Rules))
	copy(rules, s.Rules)
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].NewerThan(&rules[j])
	})

	allocations := make(map[string]uuid.UUID, len(s.Allocations))
	for site, projectID := range s.Allocations {
		allocations[strings.TrimSpace(site)] = projectID
	}

	return &Resolver{
		version:     s.Version,
		tbd:         s.TBDProjectID,
		allocations: allocations,
		rules:       rules,
	}
}

// Version returns the resolution version the resolver was built from
func (r *Resolver) Version() int64 {
	return r.version
}

// TBD returns the sentinel project id
func (r *Resolver) TBD() uuid.UUID {
	return r.tbd
}

// Resolve returns the internal project for a PO line
func (r *Resolver) Resolve(site string, publishDate *time.Time, customerProjectID *uuid.UUID) uuid.UUID {
	site = strings.TrimSpace(site)
	if projectID, ok := r.allocations[site]; ok && site != "" {
		return projectID
	}
	if site == "" {
		return r.tbd
	}

	subject := Subject{
		SiteCode:          site,
		PublishDate:       publishDate,
		CustomerProjectID: customerProjectID,
	}
	for i := range r.rules {
		if AllHold(r.rules[i].Predicates(), subject) {
			return r.rules[i].TargetProjectID
		}
	}
	return r.tbd
}

package project

import (
	"strings"
	"time"

	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/google/uuid"
)

// RuleCriteria carries the optional predicates of a resolution rule.
// Empty strings and nil pointers are unpopulated.
type RuleCriteria struct {
	SitePrefix        string
	SiteSuffix        string
	SiteContains      string
	CustomerProjectID *uuid.UUID
	PublishDateMin    *time.Time
	PublishDateMax    *time.Time
}

// Rule maps PO lines whose populated predicates all hold to a target project.
// When several rules match, the most recently created one wins.
type Rule struct {
	shared.BaseEntity
	Name            string
	TargetProjectID uuid.UUID
	RuleCriteria
}

// NewRule creates a new resolution rule
func NewRule(name string, targetProjectID uuid.UUID, criteria RuleCriteria) (*Rule, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_RULE", "Rule name cannot be empty")
	}
	if targetProjectID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_RULE", "Rule target project is required")
	}

	criteria.SitePrefix = strings.TrimSpace(criteria.SitePrefix)
	criteria.SiteSuffix = strings.TrimSpace(criteria.SiteSuffix)
	criteria.SiteContains = strings.TrimSpace(criteria.SiteContains)
	if criteria.CustomerProjectID != nil && *criteria.CustomerProjectID == uuid.Nil {
		criteria.CustomerProjectID = nil
	}
	if criteria.PublishDateMin != nil && criteria.PublishDateMax != nil &&
		criteria.PublishDateMin.After(*criteria.PublishDateMax) {
		return nil, shared.NewDomainError("INVALID_RULE", "Rule publish date window starts after it ends")
	}

	r := &Rule{
		BaseEntity:      shared.NewOrderedBaseEntity(),
		Name:            name,
		TargetProjectID: targetProjectID,
		RuleCriteria:    criteria,
	}
	if len(r.Predicates()) == 0 {
		return nil, shared.NewDomainError("INVALID_RULE", "Rule must declare at least one predicate")
	}
	return r, nil
}

// Predicates returns the populated predicates of the rule
func (r *Rule) Predicates() []Predicate {
	predicates := make([]Predicate, 0, 5)
	if r.SitePrefix != "" {
		predicates = append(predicates, PrefixMatch{Prefix: r.SitePrefix})
	}
	if r.SiteSuffix != "" {
		predicates = append(predicates, SuffixMatch{Suffix: r.SiteSuffix})
	}
	if r.SiteContains != "" {
		predicates = append(predicates, ContainsMatch{Fragment: r.SiteContains})
	}
	if r.CustomerProjectID != nil {
		predicates = append(predicates, CustomerProjectEquals{CustomerProjectID: *r.CustomerProjectID})
	}
	if r.PublishDateMin != nil || r.PublishDateMax != nil {
		predicates = append(predicates, DateRange{From: r.PublishDateMin, To: r.PublishDateMax})
	}
	return predicates
}

// Matches reports whether every populated predicate holds for s
func (r *Rule) Matches(s Subject) bool {
	s.SiteCode = strings.TrimSpace(s.SiteCode)
	return AllHold(r.Predicates(), s)
}

// NewerThan orders rules by recency, newest first
func (r *Rule) NewerThan(other *Rule) bool {
	if !r.CreatedAt.Equal(other.CreatedAt) {
		return r.CreatedAt.After(other.CreatedAt)
	}
	return r.ID.String() > other.ID.String()
}

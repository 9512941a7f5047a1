package project

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PredicateKind tags a rule predicate variant
type PredicateKind string

const (
	PredicateSitePrefix      PredicateKind = "SITE_PREFIX"
	PredicateSiteSuffix      PredicateKind = "SITE_SUFFIX"
	PredicateSiteContains    PredicateKind = "SITE_CONTAINS"
	PredicateCustomerProject PredicateKind = "CUSTOMER_PROJECT"
	PredicateDateRange       PredicateKind = "DATE_RANGE"
)

// Subject is the part of a PO line that rules are evaluated against
type Subject struct {
	SiteCode          string
	PublishDate       *time.Time
	CustomerProjectID *uuid.UUID
}

// Predicate is one populated constraint of a resolution rule
type Predicate interface {
	Kind() PredicateKind
	Holds(s Subject) bool
}

// PrefixMatch holds when the site code starts with Prefix
type PrefixMatch struct {
	Prefix string
}

func (PrefixMatch) Kind() PredicateKind { return PredicateSitePrefix }

func (p PrefixMatch) Holds(s Subject) bool {
	return strings.HasPrefix(s.SiteCode, p.Prefix)
}

// SuffixMatch holds when the site code ends with Suffix
type SuffixMatch struct {
	Suffix string
}

func (SuffixMatch) Kind() PredicateKind { return PredicateSiteSuffix }

func (p SuffixMatch) Holds(s Subject) bool {
	return strings.HasSuffix(s.SiteCode, p.Suffix)
}

// ContainsMatch holds when the site code contains Fragment
type ContainsMatch struct {
	Fragment string
}

func (ContainsMatch) Kind() PredicateKind { return PredicateSiteContains }

func (p ContainsMatch) Holds(s Subject) bool {
	return strings.Contains(s.SiteCode, p.Fragment)
}

// CustomerProjectEquals holds when the line belongs to the given customer project
type CustomerProjectEquals struct {
	CustomerProjectID uuid.UUID
}

func (CustomerProjectEquals) Kind() PredicateKind { return PredicateCustomerProject }

func (p CustomerProjectEquals) Holds(s Subject) bool {
	return s.CustomerProjectID != nil && *s.CustomerProjectID == p.CustomerProjectID
}

// DateRange holds when the publish date falls within [From, To]. Bounds are
// instants, inclusive at both ends. A nil bound is open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

func (DateRange) Kind() PredicateKind { return PredicateDateRange }

func (p DateRange) Holds(s Subject) bool {
	if s.PublishDate == nil {
		return false
	}
	at := *s.PublishDate
	if p.From != nil && at.Before(*p.From) {
		return false
	}
	if p.To != nil && at.After(*p.To) {
		return false
	}
	return true
}

// AllHold folds the predicate list: an empty list holds vacuously
func AllHold(predicates []Predicate, s Subject) bool {
	for _, p := range predicates {
		if !p.Holds(s) {
			return false
		}
	}
	return true
}

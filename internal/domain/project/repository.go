package project

import (
	"context"

	"github.com/google/uuid"
)

// InternalProjectRepository defines persistence for internal projects
type InternalProjectRepository interface {
	// FindByID finds a project by ID
	FindByID(ctx context.Context, id uuid.UUID) (*InternalProject, error)

	// FindByName finds a project by its unique name
	FindByName(ctx context.Context, name string) (*InternalProject, error)

	// FindAll returns all projects ordered by name
	FindAll(ctx context.Context) ([]InternalProject, error)

	// EnsureTBD returns the sentinel project, creating it when missing
	EnsureTBD(ctx context.Context) (*InternalProject, error)

	// Save creates or updates a project
	Save(ctx context.Context, p *InternalProject) error
}

// CustomerProjectRepository defines persistence for customer projects
type CustomerProjectRepository interface {
	// FindIDsByCodes maps each known code to its customer project ID
	FindIDsByCodes(ctx context.Context, codes []string) (map[string]uuid.UUID, error)

	// FindAll returns all customer projects ordered by code
	FindAll(ctx context.Context) ([]CustomerProject, error)

	// Save creates or updates a customer project
	Save(ctx context.Context, p *CustomerProject) error
}

// RuleRepository defines persistence for resolution rules
type RuleRepository interface {
	// FindByID finds a rule by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Rule, error)

	// FindAll returns all rules, newest first
	FindAll(ctx context.Context) ([]Rule, error)

	// Save persists a rule
	Save(ctx context.Context, r *Rule) error
}

// AllocationRepository defines persistence for manual site allocations
type AllocationRepository interface {
	// UpsertMany creates or re-points allocations keyed by site code
	UpsertMany(ctx context.Context, allocations []SiteAllocation) error

	// FindAll returns all allocations
	FindAll(ctx context.Context) ([]SiteAllocation, error)
}

// VersionRepository tracks the resolution version. Every rule or allocation
// write bumps it in the same transaction.
type VersionRepository interface {
	// Current returns the current version, 0 when never bumped
	Current(ctx context.Context) (int64, error)

	// Bump increments and returns the new version
	Bump(ctx context.Context) (int64, error)
}

// Package project holds internal accounting projects, customer projects, and
// the rules and overrides that decide which internal project a PO line belongs to.
package project

import (
	"strings"

	"github.com/erp/reconciler/internal/domain/shared"
)

// TBDProjectName is the name of the sentinel project used when nothing matches
const TBDProjectName = "TBD"

// InternalProject is an internal accounting project PO lines are booked against
type InternalProject struct {
	shared.BaseEntity
	Name        string
	Description string
	IsTBD       bool
}

// NewInternalProject creates a new internal project
func NewInternalProject(name, description string) (*InternalProject, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_PROJECT_NAME", "Project name cannot be empty")
	}
	if len(name) > 200 {
		return nil, shared.NewDomainError("INVALID_PROJECT_NAME", "Project name cannot exceed 200 characters")
	}
	if strings.EqualFold(name, TBDProjectName) {
		return nil, shared.NewDomainError("RESERVED_PROJECT_NAME", "Project name TBD is reserved")
	}
	return &InternalProject{
		BaseEntity:  shared.NewBaseEntity(),
		Name:        name,
		Description: strings.TrimSpace(description),
	}, nil
}

// NewTBDProject creates the sentinel "To Be Determined" project
func NewTBDProject() *InternalProject {
	return &InternalProject{
		BaseEntity:  shared.NewBaseEntity(),
		Name:        TBDProjectName,
		Description: "To Be Determined",
		IsTBD:       true,
	}
}

// CustomerProject is the customer-side project a PO line is raised under.
// Raw uploads reference it by code.
type CustomerProject struct {
	shared.BaseEntity
	Code string
	Name string
}

// NewCustomerProject creates a new customer project
func NewCustomerProject(code, name string) (*CustomerProject, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, shared.NewDomainError("INVALID_CUSTOMER_PROJECT_CODE", "Customer project code cannot be empty")
	}
	if len(code) > 100 {
		return nil, shared.NewDomainError("INVALID_CUSTOMER_PROJECT_CODE", "Customer project code cannot exceed 100 characters")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = code
	}
	return &CustomerProject{
		BaseEntity: shared.NewBaseEntity(),
		Code:       code,
		Name:       name,
	}, nil
}

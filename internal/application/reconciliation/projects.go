package reconciliation

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/reconciler/internal/domain/project"
	"github.com/erp/reconciler/internal/domain/shared"
	"go.uber.org/zap"
)

// ErrProjectExists is returned when an internal project name is taken
var ErrProjectExists = shared.NewDomainError("PROJECT_EXISTS", "Internal project already exists")

// ErrCustomerProjectExists is returned when a customer project code is taken
var ErrCustomerProjectExists = shared.NewDomainError("CUSTOMER_PROJECT_EXISTS", "Customer project already exists")

// ListProjects returns every internal project, TBD included
func (s *Service) ListProjects(ctx context.Context) ([]ProjectResponse, error) {
	var out []ProjectResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		projects, err := repos.Projects().FindAll(ctx)
		if err != nil {
			return err
		}
		out = make([]ProjectResponse, len(projects))
		for i := range projects {
			out[i] = ToProjectResponse(&projects[i])
		}
		return nil
	})
	return out, err
}

// CreateProject adds an internal project. Names are unique.
func (s *Service) CreateProject(ctx context.Context, input CreateProjectInput) (*ProjectResponse, error) {
	p, err := project.NewInternalProject(input.Name, input.Description)
	if err != nil {
		return nil, err
	}

	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		_, err := repos.Projects().FindByName(ctx, p.Name)
		switch {
		case err == nil:
			return ErrProjectExists
		case !errors.Is(err, shared.ErrNotFound):
			return err
		}
		return repos.Projects().Save(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Internal project created", zap.String("project_id", p.ID.String()), zap.String("name", p.Name))
	resp := ToProjectResponse(p)
	return &resp, nil
}

// ListCustomerProjects returns every customer project
func (s *Service) ListCustomerProjects(ctx context.Context) ([]CustomerProjectResponse, error) {
	var out []CustomerProjectResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		projects, err := repos.CustomerProjects().FindAll(ctx)
		if err != nil {
			return err
		}
		out = make([]CustomerProjectResponse, len(projects))
		for i := range projects {
			out[i] = ToCustomerProjectResponse(&projects[i])
		}
		return nil
	})
	return out, err
}

// CreateCustomerProject registers a customer project code. Raw PO lines
// carrying the code resolve on the next merge pass.
func (s *Service) CreateCustomerProject(ctx context.Context, input CreateCustomerProjectInput) (*CustomerProjectResponse, error) {
	p, err := project.NewCustomerProject(input.Code, input.Name)
	if err != nil {
		return nil, err
	}

	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		ids, err := repos.CustomerProjects().FindIDsByCodes(ctx, []string{p.Code})
		if err != nil {
			return fmt.Errorf("failed to check customer project code: %w", err)
		}
		if _, ok := ids[p.Code]; ok {
			return ErrCustomerProjectExists
		}
		return repos.CustomerProjects().Save(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Customer project created", zap.String("customer_project_id", p.ID.String()), zap.String("code", p.Code))
	resp := ToCustomerProjectResponse(p)
	return &resp, nil
}

// ListRules returns every resolution rule, newest first
func (s *Service) ListRules(ctx context.Context) ([]RuleResponse, error) {
	var out []RuleResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		rules, err := repos.Rules().FindAll(ctx)
		if err != nil {
			return err
		}
		out = make([]RuleResponse, len(rules))
		for i := range rules {
			out[i] = ToRuleResponse(&rules[i])
		}
		return nil
	})
	return out, err
}

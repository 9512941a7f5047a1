package reconciliation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/erp/reconciler/internal/domain/ledger"
	"github.com/erp/reconciler/internal/domain/project"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateRule persists a resolution rule and immediately applies it to the
// entries still on TBD. Both happen in one transaction.
func (s *Service) CreateRule(ctx context.Context, input CreateRuleInput) (*RuleResult, error) {
	start := time.Now()
	var (
		rule       *project.Rule
		reassigned int64
	)

	err := s.withPassLock(ctx, func() error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			target, err := s.findTarget(ctx, repos, input.TargetProjectID, input.TargetProjectName)
			if err != nil {
				return err
			}

			criteria := project.RuleCriteria{
				SitePrefix:     input.SitePrefix,
				SiteSuffix:     input.SiteSuffix,
				SiteContains:   input.SiteContains,
				PublishDateMin: input.PublishDateMin,
				PublishDateMax: input.PublishDateMax,
			}
			if input.CustomerProjectCode != "" {
				ids, err := repos.CustomerProjects().FindIDsByCodes(ctx, []string{input.CustomerProjectCode})
				if err != nil {
					return fmt.Errorf("failed to resolve customer project: %w", err)
				}
				id, ok := ids[input.CustomerProjectCode]
				if !ok {
					return ErrCustomerProjectNotFound
				}
				criteria.CustomerProjectID = &id
			}

			rule, err = project.NewRule(input.Name, target.ID, criteria)
			if err != nil {
				return err
			}
			if err := repos.Rules().Save(ctx, rule); err != nil {
				return fmt.Errorf("failed to save rule: %w", err)
			}
			if _, err := repos.Versions().Bump(ctx); err != nil {
				return fmt.Errorf("failed to bump resolution version: %w", err)
			}

			reassigned, err = s.applyRule(ctx, repos, rule)
			return err
		})
	})
	if err != nil {
		s.metrics.RecordFailure(ctx, PassApplyRule, errorReason(err))
		return nil, err
	}

	s.cache.Invalidate()
	s.metrics.RecordReassigned(ctx, PassApplyRule, reassigned, time.Since(start))
	s.logger.Info("Resolution rule created",
		zap.String("rule_id", rule.ID.String()),
		zap.String("name", rule.Name),
		zap.String("target_project_id", rule.TargetProjectID.String()),
		zap.Int64("reassigned", reassigned),
	)
	return &RuleResult{Rule: ToRuleResponse(rule), Reassigned: reassigned}, nil
}

// ApplyRuleRetrospectively re-points the TBD entries a stored rule matches
// and returns how many moved
func (s *Service) ApplyRuleRetrospectively(ctx context.Context, ruleID uuid.UUID) (int64, error) {
	start := time.Now()
	var reassigned int64

	err := s.withPassLock(ctx, func() error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			rule, err := repos.Rules().FindByID(ctx, ruleID)
			if err != nil {
				return notFoundAs(err, ErrRuleNotFound)
			}
			reassigned, err = s.applyRule(ctx, repos, rule)
			return err
		})
	})
	if err != nil {
		s.metrics.RecordFailure(ctx, PassApplyRule, errorReason(err))
		return 0, err
	}

	s.metrics.RecordReassigned(ctx, PassApplyRule, reassigned, time.Since(start))
	s.logger.Info("Resolution rule applied",
		zap.String("rule_id", ruleID.String()),
		zap.Int64("reassigned", reassigned),
	)
	return reassigned, nil
}

// applyRule moves TBD entries the rule matches to its target. Entries on a
// manually allocated site and entries without a site are left alone.
func (s *Service) applyRule(ctx context.Context, repos TransactionalRepositories, rule *project.Rule) (int64, error) {
	tbd, err := repos.Projects().EnsureTBD(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load TBD project: %w", err)
	}
	if rule.TargetProjectID == tbd.ID {
		return 0, nil
	}

	candidates, err := repos.MergedPOs().FindByProject(ctx, tbd.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load TBD entries: %w", err)
	}
	if len(candidates) == 0 {
		return 0, nil
	}
	allocations, err := repos.Allocations().FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load site allocations: %w", err)
	}
	allocated := make(map[string]struct{}, len(allocations))
	for _, a := range allocations {
		allocated[a.SiteCode] = struct{}{}
	}

	ids := matchingCandidates(rule, candidates, allocated)
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := repos.MergedPOs().ReassignProject(ctx, ids, tbd.ID, rule.TargetProjectID)
	if err != nil {
		return 0, fmt.Errorf("failed to reassign entries: %w", err)
	}
	return n, nil
}

func matchingCandidates(rule *project.Rule, candidates []ledger.RuleCandidate, allocated map[string]struct{}) []uuid.UUID {
	var ids []uuid.UUID
	for _, c := range candidates {
		if c.SiteCode == "" {
			continue
		}
		if _, ok := allocated[c.SiteCode]; ok {
			continue
		}
		subject := project.Subject{
			SiteCode:          c.SiteCode,
			PublishDate:       c.PublishDate,
			CustomerProjectID: c.CustomerProjectID,
		}
		if rule.Matches(subject) {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// AssignSiteToProject pins one site to a project
func (s *Service) AssignSiteToProject(ctx context.Context, site, projectName string) (int64, error) {
	return s.AssignSitesToProject(ctx, []string{site}, projectName)
}

// AssignSitesToProject pins sites to the named project and re-points every
// ledger entry on them, whatever project they were on before. Returns the
// number of entries updated.
func (s *Service) AssignSitesToProject(ctx context.Context, sites []string, projectName string) (int64, error) {
	sites = project.NormalizeSiteCodes(sites)
	if len(sites) == 0 {
		return 0, ErrEmptySiteList
	}

	start := time.Now()
	var updated int64
	err := s.withPassLock(ctx, func() error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			target, err := s.findTarget(ctx, repos, nil, projectName)
			if err != nil {
				return err
			}

			allocations := make([]project.SiteAllocation, 0, len(sites))
			for _, site := range sites {
				a, err := project.NewSiteAllocation(site, target.ID)
				if err != nil {
					return err
				}
				allocations = append(allocations, *a)
			}
			if err := repos.Allocations().UpsertMany(ctx, allocations); err != nil {
				return fmt.Errorf("failed to save site allocations: %w", err)
			}
			if _, err := repos.Versions().Bump(ctx); err != nil {
				return fmt.Errorf("failed to bump resolution version: %w", err)
			}

			updated, err = repos.MergedPOs().ReassignSites(ctx, sites, target.ID)
			if err != nil {
				return fmt.Errorf("failed to re-point site entries: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		s.metrics.RecordFailure(ctx, PassAssignSites, errorReason(err))
		return 0, err
	}

	s.cache.Invalidate()
	s.metrics.RecordReassigned(ctx, PassAssignSites, updated, time.Since(start))
	s.logger.Info("Sites assigned",
		zap.Strings("sites", sites),
		zap.String("project", projectName),
		zap.Int64("updated", updated),
	)
	return updated, nil
}

// findTarget loads a project by id, or by name when id is nil
func (s *Service) findTarget(ctx context.Context, repos TransactionalRepositories, id *uuid.UUID, name string) (*project.InternalProject, error) {
	var (
		p   *project.InternalProject
		err error
	)
	if id != nil && *id != uuid.Nil {
		p, err = repos.Projects().FindByID(ctx, *id)
	} else {
		p, err = repos.Projects().FindByName(ctx, strings.TrimSpace(name))
	}
	if err != nil {
		return nil, notFoundAs(err, ErrProjectNotFound)
	}
	return p, nil
}

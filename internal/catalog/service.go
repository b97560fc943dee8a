package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/freshfold/freshfold-backend/pkg/db/models"
	pkgerrors "github.com/freshfold/freshfold-backend/pkg/errors"
)

// Service exposes catalog lookups to the pricing and API layers.
type Service interface {
	GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	ListPlans(ctx context.Context) ([]models.Plan, error)
	ListServices(ctx context.Context) ([]models.Service, error)
	// ResolveServices loads the active services for the given ids; any
	// missing or inactive id fails the whole resolution.
	ResolveServices(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Service, error)
}

type service struct {
	repo Repository
}

// NewService builds a catalog service with the required dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	plan, err := s.repo.FindPlan(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading plan")
	}
	if plan == nil || !plan.Active {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("plan %s not found", id))
	}
	return plan, nil
}

func (s *service) ListPlans(ctx context.Context) ([]models.Plan, error) {
	plans, err := s.repo.ListActivePlans(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing plans")
	}
	return plans, nil
}

func (s *service) ListServices(ctx context.Context) ([]models.Service, error) {
	services, err := s.repo.ListActiveServices(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing services")
	}
	return services, nil
}

func (s *service) ResolveServices(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Service, error) {
	unique := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	rows, err := s.repo.FindServicesByIDs(ctx, unique)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading services")
	}

	resolved := make(map[uuid.UUID]models.Service, len(rows))
	for _, row := range rows {
		if !row.Active {
			continue
		}
		resolved[row.ID] = row
	}
	for _, id := range unique {
		if _, ok := resolved[id]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidOrderItems, fmt.Sprintf("service %s is unknown or inactive", id))
		}
	}
	return resolved, nil
}

package costtypes

import (
	"context"
	"fmt"
	"strings"

	"github.com/C-W-Wong/omni-erp-sub000/internal/masterdata/mdshared"
	"github.com/C-W-Wong/omni-erp-sub000/internal/platform/httpx"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters mdshared.ListFilters) ([]CostType, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (CostType, error) {
	if id <= 0 {
		return CostType{}, fmt.Errorf("%w: invalid cost type id", httpx.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, form CostTypeForm) (CostType, error) {
	if err := validateForm(form); err != nil {
		return CostType{}, err
	}
	return s.repo.Create(ctx, fromForm(form))
}

// Update rejects renames of system cost types; only activation may change.
func (s *Service) Update(ctx context.Context, id int64, form CostTypeForm) (CostType, error) {
	if id <= 0 {
		return CostType{}, fmt.Errorf("%w: invalid cost type id", httpx.ErrValidation)
	}
	if err := validateForm(form); err != nil {
		return CostType{}, err
	}
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return CostType{}, err
	}
	if existing.IsSystem && (existing.Code != strings.TrimSpace(form.Code) || existing.Name != strings.TrimSpace(form.Name)) {
		return CostType{}, fmt.Errorf("%w: system cost type %s cannot be renamed", httpx.ErrForbidden, existing.Code)
	}
	if err := s.repo.Update(ctx, id, fromForm(form)); err != nil {
		return CostType{}, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid cost type id", httpx.ErrValidation)
	}
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.IsSystem {
		return fmt.Errorf("%w: system cost type %s cannot be deleted", httpx.ErrForbidden, existing.Code)
	}
	return s.repo.Delete(ctx, id)
}

func validateForm(form CostTypeForm) error {
	if strings.TrimSpace(form.Code) == "" {
		return fmt.Errorf("%w: code is required", httpx.ErrValidation)
	}
	if strings.TrimSpace(form.Name) == "" {
		return fmt.Errorf("%w: name is required", httpx.ErrValidation)
	}
	return nil
}

func fromForm(form CostTypeForm) CostType {
	return CostType{
		Code:        strings.TrimSpace(form.Code),
		Name:        strings.TrimSpace(form.Name),
		Description: form.Description,
		IsActive:    form.IsActive,
	}
}

package warehouses

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

func (s *Service) List(ctx context.Context, filters mdshared.ListFilters) ([]Warehouse, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Warehouse, error) {
	if id <= 0 {
		return Warehouse{}, fmt.Errorf("%w: invalid warehouse id", httpx.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, form WarehouseForm) (Warehouse, error) {
	if err := validateForm(form); err != nil {
		return Warehouse{}, err
	}
	return s.repo.Create(ctx, fromForm(form))
}

func (s *Service) Update(ctx context.Context, id int64, form WarehouseForm) (Warehouse, error) {
	if id <= 0 {
		return Warehouse{}, fmt.Errorf("%w: invalid warehouse id", httpx.ErrValidation)
	}
	if err := validateForm(form); err != nil {
		return Warehouse{}, err
	}
	if err := s.repo.Update(ctx, id, fromForm(form)); err != nil {
		return Warehouse{}, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid warehouse id", httpx.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}

func validateForm(form WarehouseForm) error {
	if strings.TrimSpace(form.Code) == "" {
		return fmt.Errorf("%w: code is required", httpx.ErrValidation)
	}
	if strings.TrimSpace(form.Name) == "" {
		return fmt.Errorf("%w: name is required", httpx.ErrValidation)
	}
	return nil
}

func fromForm(form WarehouseForm) Warehouse {
	return Warehouse{
		Code:     strings.TrimSpace(form.Code),
		Name:     strings.TrimSpace(form.Name),
		Address:  form.Address,
		IsActive: form.IsActive,
	}
}

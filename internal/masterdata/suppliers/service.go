package suppliers

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

func (s *Service) List(ctx context.Context, filters mdshared.ListFilters) ([]Supplier, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, fmt.Errorf("%w: invalid supplier id", httpx.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, form SupplierForm) (Supplier, error) {
	if err := validateForm(form); err != nil {
		return Supplier{}, err
	}
	return s.repo.Create(ctx, fromForm(form))
}

func (s *Service) Update(ctx context.Context, id int64, form SupplierForm) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, fmt.Errorf("%w: invalid supplier id", httpx.ErrValidation)
	}
	if err := validateForm(form); err != nil {
		return Supplier{}, err
	}
	if err := s.repo.Update(ctx, id, fromForm(form)); err != nil {
		return Supplier{}, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid supplier id", httpx.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}

func validateForm(form SupplierForm) error {
	if strings.TrimSpace(form.Code) == "" {
		return fmt.Errorf("%w: code is required", httpx.ErrValidation)
	}
	if strings.TrimSpace(form.Name) == "" {
		return fmt.Errorf("%w: name is required", httpx.ErrValidation)
	}
	return nil
}

func fromForm(form SupplierForm) Supplier {
	return Supplier{
		Code:             strings.TrimSpace(form.Code),
		Name:             strings.TrimSpace(form.Name),
		Email:            form.Email,
		Phone:            form.Phone,
		Address:          form.Address,
		PaymentTermsDays: form.PaymentTermsDays,
		IsActive:         form.IsActive,
	}
}

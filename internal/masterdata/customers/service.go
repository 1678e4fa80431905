package customers

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

func (s *Service) List(ctx context.Context, filters mdshared.ListFilters) ([]Customer, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Customer, error) {
	if id <= 0 {
		return Customer{}, fmt.Errorf("%w: invalid customer id", httpx.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, form CustomerForm) (Customer, error) {
	if err := validateForm(form); err != nil {
		return Customer{}, err
	}
	return s.repo.Create(ctx, fromForm(form))
}

func (s *Service) Update(ctx context.Context, id int64, form CustomerForm) (Customer, error) {
	if id <= 0 {
		return Customer{}, fmt.Errorf("%w: invalid customer id", httpx.ErrValidation)
	}
	if err := validateForm(form); err != nil {
		return Customer{}, err
	}
	if err := s.repo.Update(ctx, id, fromForm(form)); err != nil {
		return Customer{}, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid customer id", httpx.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}

func validateForm(form CustomerForm) error {
	if strings.TrimSpace(form.Code) == "" {
		return fmt.Errorf("%w: code is required", httpx.ErrValidation)
	}
	if strings.TrimSpace(form.Name) == "" {
		return fmt.Errorf("%w: name is required", httpx.ErrValidation)
	}
	if form.CreditLimit.IsNegative() {
		return fmt.Errorf("%w: credit limit must not be negative", httpx.ErrValidation)
	}
	return nil
}

func fromForm(form CustomerForm) Customer {
	return Customer{
		Code:        strings.TrimSpace(form.Code),
		Name:        strings.TrimSpace(form.Name),
		Email:       form.Email,
		Phone:       form.Phone,
		Address:     form.Address,
		CreditLimit: form.CreditLimit,
		IsActive:    form.IsActive,
	}
}

package products

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

func (s *Service) List(ctx context.Context, filters mdshared.ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, fmt.Errorf("%w: invalid product id", httpx.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, form ProductForm) (Product, error) {
	if err := validateForm(form); err != nil {
		return Product{}, err
	}
	return s.repo.Create(ctx, fromForm(form))
}

func (s *Service) Update(ctx context.Context, id int64, form ProductForm) (Product, error) {
	if id <= 0 {
		return Product{}, fmt.Errorf("%w: invalid product id", httpx.ErrValidation)
	}
	if err := validateForm(form); err != nil {
		return Product{}, err
	}
	if err := s.repo.Update(ctx, id, fromForm(form)); err != nil {
		return Product{}, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid product id", httpx.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}

func validateForm(form ProductForm) error {
	if strings.TrimSpace(form.SKU) == "" {
		return fmt.Errorf("%w: sku is required", httpx.ErrValidation)
	}
	if strings.TrimSpace(form.Name) == "" {
		return fmt.Errorf("%w: name is required", httpx.ErrValidation)
	}
	if form.DefaultPrice.IsNegative() || form.DefaultCost.IsNegative() {
		return fmt.Errorf("%w: price and cost must not be negative", httpx.ErrValidation)
	}
	return nil
}

func fromForm(form ProductForm) Product {
	return Product{
		SKU:          strings.TrimSpace(form.SKU),
		Name:         strings.TrimSpace(form.Name),
		Description:  form.Description,
		Unit:         form.Unit,
		DefaultPrice: form.DefaultPrice,
		DefaultCost:  form.DefaultCost,
		IsActive:     form.IsActive,
	}
}

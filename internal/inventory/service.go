package inventory

import (
	"context"

	"github.com/shopspring/decimal"
)

// Service exposes stock reads and allocation planning to other modules.
type Service struct {
	repo Repository
}

// NewService constructs the inventory service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Levels(ctx context.Context, filters LevelFilters) ([]Level, int, error) {
	return s.repo.Levels(ctx, filters)
}

func (s *Service) Valuation(ctx context.Context, warehouseID *int64) (*ValuationReport, error) {
	return s.repo.Valuation(ctx, warehouseID)
}

// PlanAllocation loads the confirmed lots with available stock and runs
// the planner. The plan is a preview only; nothing is reserved here.
func (s *Service) PlanAllocation(ctx context.Context, productID int64, method Method, warehouseID *int64, quantity decimal.Decimal) ([]Allocation, error) {
	lots, err := s.repo.AvailableLots(ctx, productID, warehouseID)
	if err != nil {
		return nil, err
	}
	return Plan(productID, method, lots, quantity)
}

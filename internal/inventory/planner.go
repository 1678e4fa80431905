package inventory

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/C-W-Wong/omni-erp-sub000/internal/platform/httpx"
	"github.com/C-W-Wong/omni-erp-sub000/internal/shared"
)

// Method selects how batches are consumed when stock is allocated.
type Method string

const (
	MethodFIFO            Method = "FIFO"
	MethodLIFO            Method = "LIFO"
	MethodWeightedAverage Method = "WEIGHTED_AVERAGE"
)

// ValidMethod reports whether m is a known allocation method.
func ValidMethod(m Method) bool {
	switch m {
	case MethodFIFO, MethodLIFO, MethodWeightedAverage:
		return true
	}
	return false
}

// Lot is one confirmed batch with stock available for allocation.
type Lot struct {
	BatchID      int64
	WarehouseID  int64
	ReceivedDate time.Time
	Available    decimal.Decimal
	CostPerUnit  decimal.Decimal
}

// Allocation is one planned slice of stock taken from a batch.
type Allocation struct {
	BatchID     int64           `json:"batch_id"`
	WarehouseID int64           `json:"warehouse_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	CostPerUnit decimal.Decimal `json:"cost_per_unit"`
}

// ShortfallError reports that the available stock cannot cover a request.
type ShortfallError struct {
	ProductID int64
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %s, available %s, missing %s",
		e.ProductID, e.Requested, e.Available, e.Missing())
}

// Missing is the quantity the plan could not cover.
func (e *ShortfallError) Missing() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

func (e *ShortfallError) Unwrap() error { return httpx.ErrValidation }

// Plan greedily consumes lots until the requested quantity is covered.
// It performs no writes; callers persist the resulting reservations.
// FIFO takes the oldest receivedDate first, LIFO the newest. Weighted
// average still consumes in FIFO order but prices every slice at the
// pool's weighted average cost per unit.
func Plan(productID int64, method Method, lots []Lot, requested decimal.Decimal) ([]Allocation, error) {
	if !requested.IsPositive() {
		return nil, fmt.Errorf("%w: requested quantity must be positive", httpx.ErrValidation)
	}
	if !ValidMethod(method) {
		return nil, fmt.Errorf("%w: unknown allocation method %q", httpx.ErrValidation, method)
	}

	pool := make([]Lot, 0, len(lots))
	available := decimal.Zero
	for _, lot := range lots {
		if lot.Available.IsPositive() {
			pool = append(pool, lot)
			available = available.Add(lot.Available)
		}
	}
	if available.LessThan(requested) {
		return nil, &ShortfallError{ProductID: productID, Requested: requested, Available: available}
	}

	switch method {
	case MethodLIFO:
		sort.SliceStable(pool, func(i, j int) bool {
			if !pool[i].ReceivedDate.Equal(pool[j].ReceivedDate) {
				return pool[i].ReceivedDate.After(pool[j].ReceivedDate)
			}
			return pool[i].BatchID > pool[j].BatchID
		})
	default:
		sort.SliceStable(pool, func(i, j int) bool {
			if !pool[i].ReceivedDate.Equal(pool[j].ReceivedDate) {
				return pool[i].ReceivedDate.Before(pool[j].ReceivedDate)
			}
			return pool[i].BatchID < pool[j].BatchID
		})
	}

	var avgCost decimal.Decimal
	if method == MethodWeightedAverage {
		value := decimal.Zero
		for _, lot := range pool {
			value = value.Add(lot.Available.Mul(lot.CostPerUnit))
		}
		avgCost = shared.RoundUnitCost(value.Div(available))
	}

	var plan []Allocation
	remaining := requested
	for _, lot := range pool {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(lot.Available, remaining)
		cost := lot.CostPerUnit
		if method == MethodWeightedAverage {
			cost = avgCost
		}
		plan = append(plan, Allocation{
			BatchID:     lot.BatchID,
			WarehouseID: lot.WarehouseID,
			Quantity:    take,
			CostPerUnit: cost,
		})
		remaining = remaining.Sub(take)
	}
	return plan, nil
}

// PlanCost returns the weighted unit cost (4 dp) and total cost (2 dp)
// of an allocation plan.
func PlanCost(plan []Allocation) (unitCost, totalCost decimal.Decimal) {
	qty := decimal.Zero
	for _, a := range plan {
		totalCost = totalCost.Add(a.Quantity.Mul(a.CostPerUnit))
		qty = qty.Add(a.Quantity)
	}
	if qty.IsPositive() {
		unitCost = shared.RoundUnitCost(totalCost.Div(qty))
	}
	return unitCost, shared.RoundMoney(totalCost)
}

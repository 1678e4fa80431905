package inventory

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/C-W-Wong/omni-erp-sub000/internal/platform/httpx"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(d int) time.Time {
	return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC)
}

func testLots() []Lot {
	return []Lot{
		{BatchID: 2, WarehouseID: 1, ReceivedDate: day(20), Available: dec("50"), CostPerUnit: dec("12.0000")},
		{BatchID: 1, WarehouseID: 1, ReceivedDate: day(10), Available: dec("100"), CostPerUnit: dec("10.0000")},
		{BatchID: 3, WarehouseID: 1, ReceivedDate: day(25), Available: dec("30"), CostPerUnit: dec("15.0000")},
	}
}

func TestPlanFIFOConsumesOldestFirst(t *testing.T) {
	plan, err := Plan(1, MethodFIFO, testLots(), dec("120"))
	require.NoError(t, err)
	require.Len(t, plan, 2)

	require.Equal(t, int64(1), plan[0].BatchID)
	require.True(t, plan[0].Quantity.Equal(dec("100")))
	require.True(t, plan[0].CostPerUnit.Equal(dec("10.0000")))

	require.Equal(t, int64(2), plan[1].BatchID)
	require.True(t, plan[1].Quantity.Equal(dec("20")))
	require.True(t, plan[1].CostPerUnit.Equal(dec("12.0000")))
}

func TestPlanLIFOConsumesNewestFirst(t *testing.T) {
	plan, err := Plan(1, MethodLIFO, testLots(), dec("60"))
	require.NoError(t, err)
	require.Len(t, plan, 2)

	require.Equal(t, int64(3), plan[0].BatchID)
	require.True(t, plan[0].Quantity.Equal(dec("30")))
	require.Equal(t, int64(2), plan[1].BatchID)
	require.True(t, plan[1].Quantity.Equal(dec("30")))
}

func TestPlanWeightedAveragePricesPool(t *testing.T) {
	// pool: 100@10 + 50@12 + 30@15 = 2050 over 180 units = 11.3889
	plan, err := Plan(1, MethodWeightedAverage, testLots(), dec("120"))
	require.NoError(t, err)
	require.Len(t, plan, 2)

	avg := dec("11.3889")
	for _, a := range plan {
		require.True(t, a.CostPerUnit.Equal(avg), "slice cost %s", a.CostPerUnit)
	}
	// still consumed in receive order
	require.Equal(t, int64(1), plan[0].BatchID)
	require.Equal(t, int64(2), plan[1].BatchID)
}

func TestPlanShortfall(t *testing.T) {
	_, err := Plan(1, MethodFIFO, testLots(), dec("200"))
	require.Error(t, err)

	var shortfall *ShortfallError
	require.ErrorAs(t, err, &shortfall)
	require.True(t, shortfall.Missing().Equal(dec("20")), "missing %s", shortfall.Missing())
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestPlanSkipsEmptyLots(t *testing.T) {
	lots := []Lot{
		{BatchID: 1, ReceivedDate: day(1), Available: dec("0"), CostPerUnit: dec("10")},
		{BatchID: 2, ReceivedDate: day(2), Available: dec("5"), CostPerUnit: dec("10")},
	}
	plan, err := Plan(1, MethodFIFO, lots, dec("5"))
	require.NoError(t, err)
	require.Len(t, plan, 1)
	require.Equal(t, int64(2), plan[0].BatchID)
}

func TestPlanRejectsBadInput(t *testing.T) {
	_, err := Plan(1, MethodFIFO, testLots(), dec("0"))
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = Plan(1, Method("RANDOM"), testLots(), dec("1"))
	require.ErrorIs(t, err, httpx.ErrValidation)

	var shortfall *ShortfallError
	require.False(t, errors.As(err, &shortfall))
}

func TestPlanCostAggregates(t *testing.T) {
	plan, err := Plan(1, MethodFIFO, testLots(), dec("120"))
	require.NoError(t, err)

	unitCost, totalCost := PlanCost(plan)
	// 100@10 + 20@12 = 1240 over 120 units
	require.True(t, totalCost.Equal(dec("1240.00")), "total %s", totalCost)
	require.True(t, unitCost.Equal(dec("10.3333")), "unit %s", unitCost)
}

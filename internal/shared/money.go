package shared

import "github.com/shopspring/decimal"

// Rounding points used across the costing and accounting modules:
// currency totals carry 2 decimal places, per-unit costs carry 4.
const (
	MoneyScale    = 2
	UnitCostScale = 4
)

// BalanceTolerance is the maximum accepted |debit - credit| difference
// for a journal entry to count as balanced.
var BalanceTolerance = decimal.NewFromFloat(0.01)

// RoundMoney rounds a currency amount to 2 decimal places.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// RoundUnitCost rounds a per-unit cost to 4 decimal places.
func RoundUnitCost(d decimal.Decimal) decimal.Decimal {
	return d.Round(UnitCostScale)
}

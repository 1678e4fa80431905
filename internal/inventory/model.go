package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// Row is one inventory record per (product, batch, warehouse).
// reserved never exceeds quantity.
type Row struct {
	ID               int64           `json:"id"`
	ProductID        int64           `json:"product_id"`
	BatchID          int64           `json:"batch_id"`
	WarehouseID      int64           `json:"warehouse_id"`
	Quantity         decimal.Decimal `json:"quantity"`
	ReservedQuantity decimal.Decimal `json:"reserved_quantity"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Available is the quantity not yet reserved.
func (r Row) Available() decimal.Decimal {
	return r.Quantity.Sub(r.ReservedQuantity)
}

// Level is a stock listing line joined with batch detail.
type Level struct {
	Row
	BatchNumber string          `json:"batch_number"`
	BatchStatus string          `json:"batch_status"`
	ProductSKU  string          `json:"product_sku"`
	ProductName string          `json:"product_name"`
	CostPerUnit decimal.Decimal `json:"cost_per_unit"`
	Available   decimal.Decimal `json:"available"`
}

// ValuationLine aggregates stock value for one product at one warehouse.
type ValuationLine struct {
	ProductID   int64           `json:"product_id"`
	ProductSKU  string          `json:"product_sku"`
	ProductName string          `json:"product_name"`
	WarehouseID int64           `json:"warehouse_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	Value       decimal.Decimal `json:"value"`
}

// ValuationReport is the stock valuation response.
type ValuationReport struct {
	Lines      []ValuationLine `json:"lines"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// LevelFilters narrows the levels listing.
type LevelFilters struct {
	ProductID   *int64
	WarehouseID *int64
	Limit       int
	Offset      int
}

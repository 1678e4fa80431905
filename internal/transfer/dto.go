package transfer

import "github.com/shopspring/decimal"

// ItemForm is one requested transfer line.
type ItemForm struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	BatchID   int64           `json:"batch_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity" validate:"required"`
}

// CreateTransferRequest opens a DRAFT transfer.
type CreateTransferRequest struct {
	SourceWarehouseID int64      `json:"source_warehouse_id" validate:"required,gt=0"`
	TargetWarehouseID int64      `json:"target_warehouse_id" validate:"required,gt=0"`
	Notes             *string    `json:"notes,omitempty"`
	Items             []ItemForm `json:"items" validate:"required,min=1,dive"`
}

// ListTransfersRequest filters transfer listings.
type ListTransfersRequest struct {
	WarehouseID *int64  `json:"warehouse_id,omitempty"`
	Status      *Status `json:"status,omitempty"`
	Limit       int     `json:"limit"`
	Offset      int     `json:"offset"`
}

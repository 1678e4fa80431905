package ar

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentRequest applies a receipt against an open item.
type PaymentRequest struct {
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	PaidAt    time.Time       `json:"paid_at" validate:"required"`
	Method    string          `json:"method" validate:"required,oneof=BANK_TRANSFER CASH CHEQUE CARD"`
	Reference *string         `json:"reference,omitempty"`
}

// ListOpenItemsRequest filters open item listings.
type ListOpenItemsRequest struct {
	CustomerID *int64  `json:"customer_id,omitempty"`
	Status     *Status `json:"status,omitempty"`
	Limit      int     `json:"limit"`
	Offset     int     `json:"offset"`
}

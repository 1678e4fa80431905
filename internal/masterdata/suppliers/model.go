package suppliers

import "time"

// Supplier represents a vendor the company purchases from.
type Supplier struct {
	ID               int64     `json:"id"`
	Code             string    `json:"code"`
	Name             string    `json:"name"`
	Email            *string   `json:"email,omitempty"`
	Phone            *string   `json:"phone,omitempty"`
	Address          *string   `json:"address,omitempty"`
	PaymentTermsDays int       `json:"payment_terms_days"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// SupplierForm is the create/update payload.
type SupplierForm struct {
	Code             string  `json:"code" validate:"required,max=64"`
	Name             string  `json:"name" validate:"required,max=255"`
	Email            *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone            *string `json:"phone,omitempty"`
	Address          *string `json:"address,omitempty"`
	PaymentTermsDays int     `json:"payment_terms_days" validate:"gte=0,lte=365"`
	IsActive         bool    `json:"is_active"`
}

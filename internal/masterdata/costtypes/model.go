package costtypes

import "time"

// CostType classifies landed cost components (freight, duty, insurance...).
// System types ship with the application and cannot be renamed or deleted.
type CostType struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	IsSystem    bool      `json:"is_system"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CostTypeForm is the create/update payload.
type CostTypeForm struct {
	Code        string  `json:"code" validate:"required,max=64"`
	Name        string  `json:"name" validate:"required,max=255"`
	Description *string `json:"description,omitempty"`
	IsActive    bool    `json:"is_active"`
}

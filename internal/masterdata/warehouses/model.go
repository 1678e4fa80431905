package warehouses

import "time"

// Warehouse represents a physical stocking location.
type Warehouse struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   *string   `json:"address,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WarehouseForm is the create/update payload.
type WarehouseForm struct {
	Code     string  `json:"code" validate:"required,max=64"`
	Name     string  `json:"name" validate:"required,max=255"`
	Address  *string `json:"address,omitempty"`
	IsActive bool    `json:"is_active"`
}

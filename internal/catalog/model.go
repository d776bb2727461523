package catalog

import "time"

// Product is a sellable item supplied by a supplier.
type Product struct {
	ID         int64     `json:"id"`
	TenantID   int64     `json:"-"`
	SupplierID int64     `json:"supplier_id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	Unit       string    `json:"unit"`
	UnitPrice  float64   `json:"unit_price"`
	Stock      int       `json:"stock"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListFilter narrows the storefront catalog.
type ListFilter struct {
	Search     string
	SupplierID int64
	Page       int
	Limit      int
}

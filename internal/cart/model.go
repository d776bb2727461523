package cart

import (
	"time"

	"github.com/odyssey-erp/odyssey-b2b/internal/pricing"
)

const (
	// MaxQuantity bounds a single cart line.
	MaxQuantity = 9999
	// DefaultTTL is how long an untouched cart survives.
	DefaultTTL = 30 * 24 * time.Hour
)

// Item is a stored cart line. UnitPrice is a display snapshot; orders reprice.
type Item struct {
	ProductID int64     `json:"product_id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	UnitPrice float64   `json:"unit_price"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

// Line is an item with its computed total.
type Line struct {
	Item
	LineTotal float64 `json:"line_total"`
}

// Cart is the priced view returned to the storefront.
type Cart struct {
	Items     []Line         `json:"items"`
	ItemCount int            `json:"item_count"`
	Totals    pricing.Totals `json:"totals"`
}

// AddItemInput is the add-to-cart payload.
type AddItemInput struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,min=1,max=9999"`
}

// UpdateQuantityInput sets a line quantity; 0 removes the line.
type UpdateQuantityInput struct {
	Quantity *int `json:"quantity" validate:"required,min=0,max=9999"`
}

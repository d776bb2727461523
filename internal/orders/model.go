package orders

import (
	"time"

	"github.com/odyssey-erp/odyssey-b2b/internal/pricing"
)

// Status of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// PaymentMethod selects how the retailer settles the order.
type PaymentMethod string

const (
	PaymentCredit         PaymentMethod = "credit"
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
)

// Order is a placed retailer order.
type Order struct {
	ID            int64         `json:"id"`
	TenantID      int64         `json:"-"`
	Number        string        `json:"number"`
	RetailerID    int64         `json:"retailer_id"`
	Status        Status        `json:"status"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Notes         string        `json:"notes"`
	pricing.Totals
	Lines     []Line    `json:"lines"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Line is a priced order line.
type Line struct {
	ProductID int64   `json:"product_id"`
	SKU       string  `json:"sku"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
}

// CreateInput is the checkout payload.
type CreateInput struct {
	PaymentMethod PaymentMethod `json:"payment_method" validate:"required,oneof=credit cash_on_delivery"`
	Notes         string        `json:"notes" validate:"max=1000"`
}

// Placed is the checkout response.
type Placed struct {
	Order           Order   `json:"order"`
	RetailerBalance float64 `json:"retailer_balance"`
}

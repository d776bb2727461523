package invoices

import (
	"time"

	"github.com/odyssey-erp/odyssey-b2b/internal/pricing"
)

// Status of an invoice.
type Status string

const (
	StatusIssued        Status = "issued"
	StatusPartiallyPaid Status = "partially_paid"
	StatusPaid          Status = "paid"
	StatusVoid          Status = "void"
)

// DefaultDueDays is used when the request does not set payment terms.
const DefaultDueDays = 30

// Invoice bills one order.
type Invoice struct {
	ID         int64     `json:"id"`
	TenantID   int64     `json:"-"`
	Number     string    `json:"number"`
	OrderID    int64     `json:"order_id"`
	RetailerID int64     `json:"retailer_id"`
	IssueDate  time.Time `json:"issue_date"`
	DueDate    time.Time `json:"due_date"`
	pricing.Totals
	PaidAmount float64   `json:"paid_amount"`
	Status     Status    `json:"status"`
	Lines      []Line    `json:"lines"`
	CreatedAt  time.Time `json:"created_at"`
}

// Line is copied from the order line.
type Line struct {
	SKU       string  `json:"sku"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
}

// Outstanding is the unpaid part of the invoice.
func (i Invoice) Outstanding() float64 {
	if i.PaidAmount >= i.Total {
		return 0
	}
	return i.Total - i.PaidAmount
}

// GenerateInput is the invoice generation payload.
type GenerateInput struct {
	OrderID int64 `json:"order_id" validate:"required,gt=0"`
	DueDays *int  `json:"due_days" validate:"omitempty,gte=0,lte=365"`
}

// StatusForPaid derives the status after a payment.
func StatusForPaid(paid, total float64) Status {
	switch {
	case paid <= 0:
		return StatusIssued
	case paid+0.005 >= total:
		return StatusPaid
	default:
		return StatusPartiallyPaid
	}
}

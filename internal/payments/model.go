package payments

import (
	"time"

	"github.com/odyssey-erp/odyssey-b2b/internal/invoices"
	"github.com/odyssey-erp/odyssey-b2b/internal/retailers"
)

// Method is how money was collected.
type Method string

const (
	MethodCash         Method = "cash"
	MethodBankTransfer Method = "bank_transfer"
	MethodCheque       Method = "cheque"
	MethodMobileMoney  Method = "mobile_money"
)

// Methods lists the accepted methods.
func Methods() []Method {
	return []Method{MethodCash, MethodBankTransfer, MethodCheque, MethodMobileMoney}
}

// Payment is money received from a retailer.
type Payment struct {
	ID          int64     `json:"id"`
	TenantID    int64     `json:"-"`
	RetailerID  int64     `json:"retailer_id"`
	InvoiceID   *int64    `json:"invoice_id,omitempty"`
	Amount      float64   `json:"amount"`
	Method      Method    `json:"method"`
	CollectorID *int64    `json:"collector_id,omitempty"`
	Reference   string    `json:"reference"`
	Notes       string    `json:"notes"`
	CollectedAt time.Time `json:"collected_at"`
	RecordedBy  int64     `json:"recorded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// RecordInput is the record-payment payload.
type RecordInput struct {
	RetailerID  int64      `json:"retailer_id" validate:"required,gt=0"`
	Amount      float64    `json:"amount" validate:"required,gt=0"`
	Method      Method     `json:"method" validate:"required,oneof=cash bank_transfer cheque mobile_money"`
	CollectorID *int64     `json:"collector_id" validate:"omitempty,gt=0"`
	Reference   string     `json:"reference" validate:"max=100"`
	InvoiceID   *int64     `json:"invoice_id" validate:"omitempty,gt=0"`
	CollectedAt *time.Time `json:"collected_at"`
	Notes       string     `json:"notes" validate:"max=1000"`
}

// Recorded is returned after a payment is stored.
type Recorded struct {
	Payment         Payment           `json:"payment"`
	RetailerBalance float64           `json:"retailer_balance"`
	Invoice         *invoices.Payment `json:"invoice,omitempty"`
}

// ReconcileInput is the cash reconciliation payload.
type ReconcileInput struct {
	CollectorID int64    `json:"collector_id" validate:"required,gt=0"`
	Date        string   `json:"date" validate:"required,datetime=2006-01-02"`
	ActualCash  *float64 `json:"actual_cash" validate:"required,gte=0"`
	Notes       string   `json:"notes" validate:"max=1000"`
}

// Reconciliation records counted cash against expected cash for a collector day.
type Reconciliation struct {
	ID             int64     `json:"id"`
	TenantID       int64     `json:"-"`
	CollectorID    int64     `json:"collector_id"`
	CollectionDate time.Time `json:"collection_date"`
	ExpectedCash   float64   `json:"expected_cash"`
	ActualCash     float64   `json:"actual_cash"`
	Discrepancy    float64   `json:"discrepancy"`
	HasDiscrepancy bool      `json:"has_discrepancy"`
	Notes          string    `json:"notes"`
	ReconciledBy   int64     `json:"reconciled_by"`
	CreatedAt      time.Time `json:"created_at"`
}

// Period is an inclusive range of calendar days.
type Period struct {
	From time.Time
	To   time.Time
}

// CollectionFilter narrows the cash collection report.
type CollectionFilter struct {
	Period
	CollectorID int64
}

// CollectionRow is one collector day.
type CollectionRow struct {
	CollectorID    int64     `json:"collector_id"`
	Date           time.Time `json:"date"`
	PaymentCount   int       `json:"payment_count"`
	TotalCollected float64   `json:"total_collected"`
	Status         string    `json:"status"`
	ActualCash     *float64  `json:"actual_cash,omitempty"`
	Discrepancy    *float64  `json:"discrepancy,omitempty"`
	HasDiscrepancy bool      `json:"has_discrepancy"`
}

// Row statuses.
const (
	RowReconciled = "reconciled"
	RowPending    = "pending"
)

// CollectionTotals sums the report.
type CollectionTotals struct {
	PaymentCount    int     `json:"payment_count"`
	TotalCollected  float64 `json:"total_collected"`
	TotalReconciled float64 `json:"total_reconciled"`
	NetDiscrepancy  float64 `json:"net_discrepancy"`
	PendingDays     int     `json:"pending_days"`
}

// CollectionReport is the cash collection report.
type CollectionReport struct {
	From   string           `json:"from"`
	To     string           `json:"to"`
	Rows   []CollectionRow  `json:"rows"`
	Totals CollectionTotals `json:"totals"`
}

// FinancialSummary is the admin dashboard overview.
type FinancialSummary struct {
	From               string                 `json:"from"`
	To                 string                 `json:"to"`
	TotalCreditLimit   float64                `json:"total_credit_limit"`
	TotalOutstanding   float64                `json:"total_outstanding"`
	Utilization        float64                `json:"utilization"`
	RetailersByTier    map[retailers.Tier]int `json:"retailers_by_tier"`
	CollectedByMethod  map[Method]float64     `json:"collected_by_method"`
	CollectedTotal     float64                `json:"collected_total"`
	InvoicedTotal      float64                `json:"invoiced_total"`
	UnpaidInvoiceTotal float64                `json:"unpaid_invoice_total"`
	OpenDiscrepancies  int                    `json:"open_discrepancies"`
	NetDiscrepancy     float64                `json:"net_discrepancy"`
}

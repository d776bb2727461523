package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-b2b/internal/orders"
	"github.com/odyssey-erp/odyssey-b2b/internal/platform/db"
	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

var (
	// ErrNotFound is returned when the invoice does not exist in the tenant.
	ErrNotFound = fmt.Errorf("%w: invoice not found", shared.ErrNotFound)
	// ErrAlreadyInvoiced is returned when the order already has an invoice.
	ErrAlreadyInvoiced = fmt.Errorf("%w: order already invoiced", shared.ErrConflict)
	// ErrWrongRetailer is returned when a payment names another retailer's invoice.
	ErrWrongRetailer = fmt.Errorf("%w: invoice belongs to another retailer", shared.ErrValidation)
	// ErrVoid is returned when paying a voided invoice.
	ErrVoid = fmt.Errorf("%w: invoice is void", shared.ErrConflict)
)

// Repository persists invoices.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	LoadOrder(ctx context.Context, tenantID, orderID int64) (orders.Order, error)
	NextNumber(ctx context.Context, tenantID int64, year int) (string, error)
	Insert(ctx context.Context, inv *Invoice) error
	Get(ctx context.Context, tenantID, id int64) (Invoice, error)
}

type repository struct {
	db   db.DBTX
	pool db.TxBeginner
}

// NewRepository builds the Postgres repository.
func NewRepository(conn db.DBTX, pool db.TxBeginner) Repository {
	return &repository{db: conn, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func (r *repository) LoadOrder(ctx context.Context, tenantID, orderID int64) (orders.Order, error) {
	return orders.Load(ctx, r.db, tenantID, orderID)
}

// NextNumber allocates the next sequence for (tenant, year). The counter row
// is locked until the surrounding transaction ends, so numbers are gapless.
func (r *repository) NextNumber(ctx context.Context, tenantID int64, year int) (string, error) {
	var seq int64
	err := r.db.QueryRow(ctx, `INSERT INTO invoice_counters (tenant_id, year, last_seq) VALUES ($1, $2, 1)
		ON CONFLICT (tenant_id, year) DO UPDATE SET last_seq = invoice_counters.last_seq + 1
		RETURNING last_seq`, tenantID, year).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("allocate invoice number: %w", err)
	}
	return FormatNumber(year, seq), nil
}

// FormatNumber renders INV-YYYY-NNNNNN.
func FormatNumber(year int, seq int64) string {
	return fmt.Sprintf("INV-%04d-%06d", year, seq)
}

func (r *repository) Insert(ctx context.Context, inv *Invoice) error {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO invoices (tenant_id, number, order_id, retailer_id, issue_date, due_date,
		subtotal, tax, delivery_fee, total, paid_amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, $12) RETURNING id`,
		inv.TenantID, inv.Number, inv.OrderID, inv.RetailerID, inv.IssueDate, inv.DueDate,
		inv.Subtotal, inv.Tax, inv.DeliveryFee, inv.Total, inv.Status, now).Scan(&inv.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrAlreadyInvoiced
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	for _, l := range inv.Lines {
		if _, err := r.db.Exec(ctx, `INSERT INTO invoice_lines (invoice_id, sku, name, quantity, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5, $6)`, inv.ID, l.SKU, l.Name, l.Quantity, l.UnitPrice, l.LineTotal); err != nil {
			return fmt.Errorf("insert invoice line: %w", err)
		}
	}
	inv.CreatedAt = now
	return nil
}

const invoiceColumns = `id, tenant_id, number, order_id, retailer_id, issue_date, due_date,
	subtotal, tax, delivery_fee, total, paid_amount, status, created_at`

func (r *repository) Get(ctx context.Context, tenantID, id int64) (Invoice, error) {
	var inv Invoice
	err := r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE tenant_id = $1 AND id = $2`, tenantID, id).
		Scan(&inv.ID, &inv.TenantID, &inv.Number, &inv.OrderID, &inv.RetailerID, &inv.IssueDate, &inv.DueDate,
			&inv.Subtotal, &inv.Tax, &inv.DeliveryFee, &inv.Total, &inv.PaidAmount, &inv.Status, &inv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	if err != nil {
		return Invoice{}, err
	}
	rows, err := r.db.Query(ctx, `SELECT sku, name, quantity, unit_price, line_total FROM invoice_lines
		WHERE invoice_id = $1 ORDER BY id`, inv.ID)
	if err != nil {
		return Invoice{}, fmt.Errorf("load invoice lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.SKU, &l.Name, &l.Quantity, &l.UnitPrice, &l.LineTotal); err != nil {
			return Invoice{}, err
		}
		inv.Lines = append(inv.Lines, l)
	}
	return inv, rows.Err()
}

// Payment is the invoice state after ApplyPayment.
type Payment struct {
	InvoiceID  int64   `json:"invoice_id"`
	PaidAmount float64 `json:"paid_amount"`
	Status     Status  `json:"status"`
}

// ApplyPayment adds amount to the invoice's paid amount inside the caller's
// transaction and recomputes its status.
func ApplyPayment(ctx context.Context, q db.DBTX, tenantID, invoiceID, retailerID int64, amount float64) (Payment, error) {
	var (
		owner  int64
		paid   float64
		total  float64
		status Status
	)
	err := q.QueryRow(ctx, `SELECT retailer_id, paid_amount, total, status FROM invoices
		WHERE tenant_id = $1 AND id = $2 FOR UPDATE`, tenantID, invoiceID).Scan(&owner, &paid, &total, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrNotFound
	}
	if err != nil {
		return Payment{}, err
	}
	if owner != retailerID {
		return Payment{}, ErrWrongRetailer
	}
	if status == StatusVoid {
		return Payment{}, ErrVoid
	}
	paid = shared.RoundCents(paid + amount)
	next := StatusForPaid(paid, total)
	if _, err := q.Exec(ctx, `UPDATE invoices SET paid_amount = $3, status = $4 WHERE tenant_id = $1 AND id = $2`,
		tenantID, invoiceID, paid, next); err != nil {
		return Payment{}, fmt.Errorf("update invoice payment: %w", err)
	}
	return Payment{InvoiceID: invoiceID, PaidAmount: paid, Status: next}, nil
}

package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-b2b/internal/invoices"
	"github.com/odyssey-erp/odyssey-b2b/internal/platform/db"
	"github.com/odyssey-erp/odyssey-b2b/internal/retailers"
	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

// ErrAlreadyReconciled is returned for a second reconciliation of a collector day.
var ErrAlreadyReconciled = fmt.Errorf("%w: collector day already reconciled", shared.ErrConflict)

// Repository persists payments and reconciliations and answers report queries.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Insert(ctx context.Context, p *Payment) error
	ApplyBalanceDelta(ctx context.Context, tenantID, retailerID int64, delta float64) (float64, error)
	ApplyInvoicePayment(ctx context.Context, tenantID, invoiceID, retailerID int64, amount float64) (invoices.Payment, error)
	ExpectedCash(ctx context.Context, tenantID, collectorID int64, day time.Time) (float64, error)
	InsertReconciliation(ctx context.Context, rec *Reconciliation) error
	CollectionRows(ctx context.Context, tenantID int64, filter CollectionFilter) ([]CollectionRow, error)
	CollectedByMethod(ctx context.Context, tenantID int64, p Period) (map[Method]float64, error)
	InvoicedTotal(ctx context.Context, tenantID int64, p Period) (float64, error)
	UnpaidInvoiceTotal(ctx context.Context, tenantID int64) (float64, error)
	OpenDiscrepancies(ctx context.Context, tenantID int64, p Period) (int, float64, error)
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
	return db.WithTxLevel(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func (r *repository) Insert(ctx context.Context, p *Payment) error {
	err := r.db.QueryRow(ctx, `INSERT INTO payments (tenant_id, retailer_id, invoice_id, amount, method, collector_id,
		reference, notes, collected_at, recorded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id, created_at`,
		p.TenantID, p.RetailerID, p.InvoiceID, p.Amount, p.Method, p.CollectorID,
		p.Reference, p.Notes, p.CollectedAt, p.RecordedBy).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: unknown retailer or invoice", shared.ErrNotFound)
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *repository) ApplyBalanceDelta(ctx context.Context, tenantID, retailerID int64, delta float64) (float64, error) {
	return retailers.ApplyBalanceDelta(ctx, r.db, tenantID, retailerID, delta)
}

func (r *repository) ApplyInvoicePayment(ctx context.Context, tenantID, invoiceID, retailerID int64, amount float64) (invoices.Payment, error) {
	return invoices.ApplyPayment(ctx, r.db, tenantID, invoiceID, retailerID, amount)
}

func (r *repository) ExpectedCash(ctx context.Context, tenantID, collectorID int64, day time.Time) (float64, error) {
	var total float64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM payments
		WHERE tenant_id = $1 AND collector_id = $2 AND method = 'cash'
		AND collected_at >= $3 AND collected_at < $4`,
		tenantID, collectorID, day, day.AddDate(0, 0, 1)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("expected cash: %w", err)
	}
	return total, nil
}

func (r *repository) InsertReconciliation(ctx context.Context, rec *Reconciliation) error {
	err := r.db.QueryRow(ctx, `INSERT INTO cash_reconciliations (tenant_id, collector_id, collection_date,
		expected_cash, actual_cash, discrepancy, has_discrepancy, notes, reconciled_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id, created_at`,
		rec.TenantID, rec.CollectorID, rec.CollectionDate, rec.ExpectedCash, rec.ActualCash,
		rec.Discrepancy, rec.HasDiscrepancy, rec.Notes, rec.ReconciledBy).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrAlreadyReconciled
		}
		return fmt.Errorf("insert reconciliation: %w", err)
	}
	return nil
}

func (r *repository) CollectionRows(ctx context.Context, tenantID int64, filter CollectionFilter) ([]CollectionRow, error) {
	w := &db.Where{}
	w.Add("p.tenant_id = ?", tenantID)
	w.Add("p.method = 'cash'")
	w.Add("p.collector_id IS NOT NULL")
	w.Add("p.collected_at >= ?", filter.From)
	w.Add("p.collected_at < ?", filter.End())
	if filter.CollectorID > 0 {
		w.Add("p.collector_id = ?", filter.CollectorID)
	}
	rows, err := r.db.Query(ctx, `WITH days AS (
			SELECT p.collector_id, (p.collected_at AT TIME ZONE 'UTC')::date AS day,
				COUNT(*) AS payment_count, SUM(p.amount) AS total
			FROM payments p
			WHERE `+w.SQL()+`
			GROUP BY 1, 2
		)
		SELECT d.collector_id, d.day, d.payment_count, d.total, c.actual_cash, c.discrepancy, COALESCE(c.has_discrepancy, FALSE)
		FROM days d
		LEFT JOIN cash_reconciliations c
			ON c.tenant_id = `+w.Next(1)+` AND c.collector_id = d.collector_id AND c.collection_date = d.day
		ORDER BY d.day, d.collector_id`, append(w.Args(), tenantID)...)
	if err != nil {
		return nil, fmt.Errorf("collection rows: %w", err)
	}
	defer rows.Close()
	var out []CollectionRow
	for rows.Next() {
		var row CollectionRow
		if err := rows.Scan(&row.CollectorID, &row.Date, &row.PaymentCount, &row.TotalCollected,
			&row.ActualCash, &row.Discrepancy, &row.HasDiscrepancy); err != nil {
			return nil, err
		}
		row.Status = RowPending
		if row.ActualCash != nil {
			row.Status = RowReconciled
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *repository) CollectedByMethod(ctx context.Context, tenantID int64, p Period) (map[Method]float64, error) {
	rows, err := r.db.Query(ctx, `SELECT method, SUM(amount) FROM payments
		WHERE tenant_id = $1 AND collected_at >= $2 AND collected_at < $3 GROUP BY method`,
		tenantID, p.From, p.End())
	if err != nil {
		return nil, fmt.Errorf("collected by method: %w", err)
	}
	defer rows.Close()
	out := make(map[Method]float64, len(Methods()))
	for _, m := range Methods() {
		out[m] = 0
	}
	for rows.Next() {
		var (
			m     Method
			total float64
		)
		if err := rows.Scan(&m, &total); err != nil {
			return nil, err
		}
		out[m] = total
	}
	return out, rows.Err()
}

func (r *repository) InvoicedTotal(ctx context.Context, tenantID int64, p Period) (float64, error) {
	var total float64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(total), 0) FROM invoices
		WHERE tenant_id = $1 AND status <> 'void' AND issue_date BETWEEN $2 AND $3`,
		tenantID, p.From, p.To).Scan(&total)
	return total, err
}

func (r *repository) UnpaidInvoiceTotal(ctx context.Context, tenantID int64) (float64, error) {
	var total float64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(GREATEST(total - paid_amount, 0)), 0) FROM invoices
		WHERE tenant_id = $1 AND status IN ('issued', 'partially_paid')`, tenantID).Scan(&total)
	return total, err
}

func (r *repository) OpenDiscrepancies(ctx context.Context, tenantID int64, p Period) (int, float64, error) {
	var (
		count int
		net   float64
	)
	err := r.db.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(discrepancy), 0) FROM cash_reconciliations
		WHERE tenant_id = $1 AND has_discrepancy AND collection_date BETWEEN $2 AND $3`,
		tenantID, p.From, p.To).Scan(&count, &net)
	return count, net, err
}

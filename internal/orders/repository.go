package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-b2b/internal/catalog"
	"github.com/odyssey-erp/odyssey-b2b/internal/platform/db"
	"github.com/odyssey-erp/odyssey-b2b/internal/retailers"
	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

// ErrNotFound is returned when the order does not exist in the tenant.
var ErrNotFound = fmt.Errorf("%w: order not found", shared.ErrNotFound)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	LockRetailer(ctx context.Context, tenantID, id int64) (retailers.Retailer, error)
	LockProducts(ctx context.Context, tenantID int64, ids []int64) (map[int64]catalog.Product, error)
	DecrementStock(ctx context.Context, tenantID, productID int64, qty int) error
	ApplyBalanceDelta(ctx context.Context, tenantID, retailerID int64, delta float64) (float64, error)
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, tenantID, id int64) (Order, error)
	ListByRetailer(ctx context.Context, tenantID, retailerID int64, page, limit int) ([]Order, int, error)
}

type repository struct {
	db   db.DBTX
	pool db.TxBeginner
}

// NewRepository builds the Postgres repository. pool starts transactions.
func NewRepository(conn db.DBTX, pool db.TxBeginner) Repository {
	return &repository{db: conn, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTxLevel(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func (r *repository) LockRetailer(ctx context.Context, tenantID, id int64) (retailers.Retailer, error) {
	return retailers.LockForUpdate(ctx, r.db, tenantID, id)
}

func (r *repository) LockProducts(ctx context.Context, tenantID int64, ids []int64) (map[int64]catalog.Product, error) {
	return catalog.LockForUpdate(ctx, r.db, tenantID, ids)
}

func (r *repository) DecrementStock(ctx context.Context, tenantID, productID int64, qty int) error {
	return catalog.DecrementStock(ctx, r.db, tenantID, productID, qty)
}

func (r *repository) ApplyBalanceDelta(ctx context.Context, tenantID, retailerID int64, delta float64) (float64, error) {
	return retailers.ApplyBalanceDelta(ctx, r.db, tenantID, retailerID, delta)
}

func (r *repository) Insert(ctx context.Context, o *Order) error {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO orders (tenant_id, number, retailer_id, status, payment_method, notes,
		subtotal, tax, delivery_fee, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11) RETURNING id`,
		o.TenantID, o.Number, o.RetailerID, o.Status, o.PaymentMethod, o.Notes,
		o.Subtotal, o.Tax, o.DeliveryFee, o.Total, now).Scan(&o.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("%w: order number collision", shared.ErrConflict)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	for _, l := range o.Lines {
		if _, err := r.db.Exec(ctx, `INSERT INTO order_lines (order_id, product_id, sku, name, quantity, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			o.ID, l.ProductID, l.SKU, l.Name, l.Quantity, l.UnitPrice, l.LineTotal); err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}
	o.CreatedAt = now
	o.UpdatedAt = now
	return nil
}

func (r *repository) Get(ctx context.Context, tenantID, id int64) (Order, error) {
	return Load(ctx, r.db, tenantID, id)
}

const orderColumns = `id, tenant_id, number, retailer_id, status, payment_method, notes,
	subtotal, tax, delivery_fee, total, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.TenantID, &o.Number, &o.RetailerID, &o.Status, &o.PaymentMethod, &o.Notes,
		&o.Subtotal, &o.Tax, &o.DeliveryFee, &o.Total, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// Load reads an order with its lines using q, which may be a transaction.
func Load(ctx context.Context, q db.DBTX, tenantID, id int64) (Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE tenant_id = $1 AND id = $2`, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	rows, err := q.Query(ctx, `SELECT product_id, sku, name, quantity, unit_price, line_total
		FROM order_lines WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return Order{}, fmt.Errorf("load order lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ProductID, &l.SKU, &l.Name, &l.Quantity, &l.UnitPrice, &l.LineTotal); err != nil {
			return Order{}, err
		}
		o.Lines = append(o.Lines, l)
	}
	return o, rows.Err()
}

func (r *repository) ListByRetailer(ctx context.Context, tenantID, retailerID int64, page, limit int) ([]Order, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE tenant_id = $1 AND retailer_id = $2`,
		tenantID, retailerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	offset := 0
	if page > 1 {
		offset = (page - 1) * limit
	}
	rows, err := r.db.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE tenant_id = $1 AND retailer_id = $2 ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4`,
		tenantID, retailerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

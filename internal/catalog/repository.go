package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-b2b/internal/platform/db"
	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

var (
	// ErrNotFound is returned for unknown or inactive products.
	ErrNotFound = fmt.Errorf("%w: product not found", shared.ErrNotFound)
	// ErrInsufficientStock is returned when a quantity exceeds what is on hand.
	ErrInsufficientStock = fmt.Errorf("%w: insufficient stock", shared.ErrConflict)
)

// Repository reads the active catalog.
type Repository interface {
	List(ctx context.Context, tenantID int64, filter ListFilter) ([]Product, int, error)
	GetActive(ctx context.Context, tenantID, id int64) (Product, error)
}

type repository struct {
	db db.DBTX
}

// NewRepository constructs a Postgres backed repository.
func NewRepository(conn db.DBTX) Repository {
	return &repository{db: conn}
}

const selectColumns = `id, tenant_id, supplier_id, sku, name, unit, unit_price, stock, is_active, created_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.TenantID, &p.SupplierID, &p.SKU, &p.Name, &p.Unit, &p.UnitPrice, &p.Stock, &p.IsActive, &p.CreatedAt)
	return p, err
}

func (r *repository) List(ctx context.Context, tenantID int64, filter ListFilter) ([]Product, int, error) {
	w := &db.Where{}
	w.Add("tenant_id = ?", tenantID)
	w.Add("is_active")
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := "%" + s + "%"
		w.Add("(sku ILIKE ? OR name ILIKE ?)", pattern, pattern)
	}
	if filter.SupplierID > 0 {
		w.Add("supplier_id = ?", filter.SupplierID)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE `+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * filter.Limit
	}
	args := append(w.Args(), filter.Limit, offset)
	rows, err := r.db.Query(ctx, `SELECT `+selectColumns+` FROM products WHERE `+w.SQL()+
		` ORDER BY name ASC LIMIT `+w.Next(1)+` OFFSET `+w.Next(2), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *repository) GetActive(ctx context.Context, tenantID, id int64) (Product, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM products WHERE tenant_id = $1 AND id = $2 AND is_active`, tenantID, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

// LockForUpdate loads the given products inside a transaction and locks them,
// in id order so concurrent orders cannot deadlock.
func LockForUpdate(ctx context.Context, q db.DBTX, tenantID int64, ids []int64) (map[int64]Product, error) {
	rows, err := q.Query(ctx, `SELECT `+selectColumns+` FROM products
		WHERE tenant_id = $1 AND id = ANY($2) ORDER BY id FOR UPDATE`, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()
	out := make(map[int64]Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// DecrementStock removes qty from stock; it fails rather than going negative.
func DecrementStock(ctx context.Context, q db.DBTX, tenantID, id int64, qty int) error {
	tag, err := q.Exec(ctx, `UPDATE products SET stock = stock - $3 WHERE tenant_id = $1 AND id = $2 AND stock >= $3`,
		tenantID, id, qty)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientStock
	}
	return nil
}

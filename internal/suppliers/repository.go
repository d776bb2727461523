package suppliers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-b2b/internal/platform/db"
	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

var (
	// ErrNotFound is returned when the supplier does not exist in the tenant.
	ErrNotFound = fmt.Errorf("%w: supplier not found", shared.ErrNotFound)
	// ErrDuplicateCode is returned when the code is already taken in the tenant.
	ErrDuplicateCode = fmt.Errorf("%w: supplier code already exists", shared.ErrConflict)
	// ErrInUse is returned when a hard delete is blocked by catalog products.
	ErrInUse = fmt.Errorf("%w: supplier is referenced by products", shared.ErrConflict)
)

type Repository interface {
	List(ctx context.Context, tenantID int64, filter ListFilter) ([]Supplier, int, error)
	Get(ctx context.Context, tenantID, id int64) (Supplier, error)
	Create(ctx context.Context, supplier Supplier) (Supplier, error)
	Update(ctx context.Context, supplier Supplier) (Supplier, error)
	Delete(ctx context.Context, tenantID, id int64) error
	HasProducts(ctx context.Context, tenantID, id int64) (bool, error)
	SetStatus(ctx context.Context, tenantID, id int64, status Status) error
	BulkUpdate(ctx context.Context, tenantID int64, change BulkChange) (int64, error)
}

type repository struct {
	db db.DBTX
}

func NewRepository(conn db.DBTX) Repository {
	return &repository{db: conn}
}

const selectColumns = `id, tenant_id, code, name, contact_name, email, phone, address, city, category,
	status, commission_rate, payment_terms, notes, created_at, updated_at`

func scanSupplier(row pgx.Row) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.TenantID, &s.Code, &s.Name, &s.ContactName, &s.Email, &s.Phone, &s.Address,
		&s.City, &s.Category, &s.Status, &s.CommissionRate, &s.PaymentTerms, &s.Notes, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *repository) List(ctx context.Context, tenantID int64, filter ListFilter) ([]Supplier, int, error) {
	w := &db.Where{}
	w.Add("tenant_id = ?", tenantID)
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := "%" + s + "%"
		w.Add("(code ILIKE ? OR name ILIKE ? OR email ILIKE ?)", pattern, pattern, pattern)
	}
	if filter.Status != "" {
		w.Add("status = ?", filter.Status)
	}
	if c := strings.TrimSpace(filter.Category); c != "" {
		w.Add("category ILIKE ?", c)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM suppliers WHERE `+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count suppliers: %w", err)
	}

	args := w.Args()
	query := `SELECT ` + selectColumns + ` FROM suppliers WHERE ` + w.SQL() + ` ORDER BY ` + sortOrder(filter.SortBy, filter.Desc)
	if filter.Limit > 0 {
		offset := (filter.Page - 1) * filter.Limit
		if offset < 0 {
			offset = 0
		}
		query += ` LIMIT ` + w.Next(1) + ` OFFSET ` + w.Next(2)
		args = append(args, filter.Limit, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, 0, err
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, tenantID, id int64) (Supplier, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM suppliers WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	s, err := scanSupplier(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrNotFound
	}
	return s, err
}

func (r *repository) Create(ctx context.Context, supplier Supplier) (Supplier, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO suppliers (tenant_id, code, name, contact_name, email, phone, address, city,
		category, status, commission_rate, payment_terms, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14) RETURNING id`,
		supplier.TenantID, supplier.Code, supplier.Name, supplier.ContactName, supplier.Email, supplier.Phone,
		supplier.Address, supplier.City, supplier.Category, supplier.Status, supplier.CommissionRate,
		supplier.PaymentTerms, supplier.Notes, now).Scan(&supplier.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Supplier{}, ErrDuplicateCode
		}
		return Supplier{}, err
	}
	supplier.CreatedAt = now
	supplier.UpdatedAt = now
	return supplier, nil
}

func (r *repository) Update(ctx context.Context, supplier Supplier) (Supplier, error) {
	err := r.db.QueryRow(ctx, `UPDATE suppliers SET code = $3, name = $4, contact_name = $5, email = $6, phone = $7,
		address = $8, city = $9, category = $10, status = $11, commission_rate = $12, payment_terms = $13, notes = $14,
		updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 RETURNING created_at, updated_at`,
		supplier.TenantID, supplier.ID, supplier.Code, supplier.Name, supplier.ContactName, supplier.Email,
		supplier.Phone, supplier.Address, supplier.City, supplier.Category, supplier.Status,
		supplier.CommissionRate, supplier.PaymentTerms, supplier.Notes).Scan(&supplier.CreatedAt, &supplier.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return Supplier{}, ErrNotFound
	case db.IsUniqueViolation(err):
		return Supplier{}, ErrDuplicateCode
	case err != nil:
		return Supplier{}, err
	}
	return supplier, nil
}

func (r *repository) Delete(ctx context.Context, tenantID, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM suppliers WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) HasProducts(ctx context.Context, tenantID, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE tenant_id = $1 AND supplier_id = $2)`,
		tenantID, id).Scan(&exists)
	return exists, err
}

func (r *repository) SetStatus(ctx context.Context, tenantID, id int64, status Status) error {
	tag, err := r.db.Exec(ctx, `UPDATE suppliers SET status = $3, updated_at = NOW() WHERE tenant_id = $1 AND id = $2`,
		tenantID, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// BulkUpdate applies change in a single statement; ids outside the tenant are skipped.
func (r *repository) BulkUpdate(ctx context.Context, tenantID int64, change BulkChange) (int64, error) {
	var status *string
	if change.Status != nil {
		s := string(*change.Status)
		status = &s
	}
	tag, err := r.db.Exec(ctx, `UPDATE suppliers SET
		status = COALESCE($3, status),
		category = COALESCE($4, category),
		commission_rate = COALESCE($5, commission_rate),
		updated_at = NOW()
		WHERE tenant_id = $1 AND id = ANY($2)`,
		tenantID, change.IDs, status, change.Category, change.CommissionRate)
	if err != nil {
		return 0, fmt.Errorf("bulk update suppliers: %w", err)
	}
	return tag.RowsAffected(), nil
}

func sortOrder(sortBy string, desc bool) string {
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	switch sortBy {
	case "code":
		return "code " + dir
	case "category":
		return "category " + dir + ", name ASC"
	case "commission_rate":
		return "commission_rate " + dir + ", name ASC"
	case "created_at":
		return "created_at " + dir
	default:
		return "name " + dir
	}
}

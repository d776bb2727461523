package retailers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-b2b/internal/platform/db"
	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

// ErrNotFound is returned when the retailer does not exist in the tenant.
var ErrNotFound = fmt.Errorf("%w: retailer not found", shared.ErrNotFound)

// Repository provides retailer persistence.
type Repository interface {
	List(ctx context.Context, tenantID int64, filter ListFilter) ([]Retailer, int, error)
	Get(ctx context.Context, tenantID, id int64) (Retailer, error)
	ListAudience(ctx context.Context, tenantID int64, audience Audience) ([]Retailer, error)
	Portfolio(ctx context.Context, tenantID int64) (Portfolio, error)
}

type repository struct {
	db db.DBTX
}

// NewRepository constructs a Postgres backed repository.
func NewRepository(conn db.DBTX) Repository {
	return &repository{db: conn}
}

const selectColumns = `id, tenant_id, code, name, owner_name, email, phone, city, address, status,
	credit_limit, balance, created_at, updated_at`

func scanRetailer(row pgx.Row) (Retailer, error) {
	var r Retailer
	err := row.Scan(&r.ID, &r.TenantID, &r.Code, &r.Name, &r.OwnerName, &r.Email, &r.Phone, &r.City,
		&r.Address, &r.Status, &r.CreditLimit, &r.Balance, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (r *repository) List(ctx context.Context, tenantID int64, filter ListFilter) ([]Retailer, int, error) {
	w := &db.Where{}
	w.Add("tenant_id = ?", tenantID)
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := "%" + s + "%"
		w.Add("(code ILIKE ? OR name ILIKE ? OR email ILIKE ? OR phone ILIKE ?)", pattern, pattern, pattern, pattern)
	}
	if filter.Status != "" {
		w.Add("status = ?", filter.Status)
	}
	if filter.City != "" {
		w.Add("city ILIKE ?", filter.City)
	}
	if filter.Tier != "" {
		w.Add(tierSQL(filter.Tier))
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM retailers WHERE "+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count retailers: %w", err)
	}

	args := w.Args()
	args = append(args, filter.Limit, offset(filter.Page, filter.Limit))
	query := fmt.Sprintf(`SELECT %s FROM retailers WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		selectColumns, w.SQL(), sortOrder(filter.SortBy, filter.Desc), len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list retailers: %w", err)
	}
	defer rows.Close()

	var out []Retailer
	for rows.Next() {
		ret, err := scanRetailer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, ret)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, tenantID, id int64) (Retailer, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM retailers WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	ret, err := scanRetailer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Retailer{}, ErrNotFound
	}
	return ret, err
}

func (r *repository) ListAudience(ctx context.Context, tenantID int64, audience Audience) ([]Retailer, error) {
	w := &db.Where{}
	w.Add("tenant_id = ?", tenantID)
	if len(audience.Statuses) > 0 {
		statuses := make([]string, len(audience.Statuses))
		for i, s := range audience.Statuses {
			statuses[i] = string(s)
		}
		w.Add("status = ANY(?)", statuses)
	}
	if len(audience.Cities) > 0 {
		cities := make([]string, len(audience.Cities))
		for i, c := range audience.Cities {
			cities[i] = strings.ToLower(strings.TrimSpace(c))
		}
		w.Add("LOWER(city) = ANY(?)", cities)
	}
	if len(audience.RetailerIDs) > 0 {
		w.Add("id = ANY(?)", audience.RetailerIDs)
	}
	if len(audience.Tiers) > 0 {
		preds := make([]string, 0, len(audience.Tiers))
		for _, t := range audience.Tiers {
			preds = append(preds, "("+tierSQL(t)+")")
		}
		w.Add("(" + strings.Join(preds, " OR ") + ")")
	}

	rows, err := r.db.Query(ctx, `SELECT `+selectColumns+` FROM retailers WHERE `+w.SQL()+` ORDER BY id`, w.Args()...)
	if err != nil {
		return nil, fmt.Errorf("list audience: %w", err)
	}
	defer rows.Close()
	var out []Retailer
	for rows.Next() {
		ret, err := scanRetailer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ret)
	}
	return out, rows.Err()
}

func (r *repository) Portfolio(ctx context.Context, tenantID int64) (Portfolio, error) {
	rows, err := r.db.Query(ctx, `SELECT balance, credit_limit FROM retailers WHERE tenant_id = $1 AND status <> 'inactive'`, tenantID)
	if err != nil {
		return Portfolio{}, fmt.Errorf("portfolio: %w", err)
	}
	defer rows.Close()
	var positions [][2]float64
	for rows.Next() {
		var balance, limit float64
		if err := rows.Scan(&balance, &limit); err != nil {
			return Portfolio{}, err
		}
		positions = append(positions, [2]float64{balance, limit})
	}
	if err := rows.Err(); err != nil {
		return Portfolio{}, err
	}
	return BuildPortfolio(positions), nil
}

// BuildPortfolio aggregates (balance, limit) pairs.
func BuildPortfolio(positions [][2]float64) Portfolio {
	p := Portfolio{ByTier: make(map[Tier]int, len(Tiers()))}
	for _, t := range Tiers() {
		p.ByTier[t] = 0
	}
	for _, pos := range positions {
		balance, limit := pos[0], pos[1]
		p.RetailerCount++
		p.TotalCreditLimit += limit
		p.TotalOutstanding += CreditUsed(balance)
		p.ByTier[TierFor(balance, limit)]++
	}
	p.TotalCreditLimit = round2(p.TotalCreditLimit)
	p.TotalOutstanding = round2(p.TotalOutstanding)
	p.Utilization = round2(Utilization(p.TotalOutstanding, p.TotalCreditLimit))
	return p
}

// LockForUpdate reads a retailer row inside a transaction, locking it.
func LockForUpdate(ctx context.Context, q db.DBTX, tenantID, id int64) (Retailer, error) {
	row := q.QueryRow(ctx, `SELECT `+selectColumns+` FROM retailers WHERE tenant_id = $1 AND id = $2 FOR UPDATE`, tenantID, id)
	ret, err := scanRetailer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Retailer{}, ErrNotFound
	}
	return ret, err
}

// ApplyBalanceDelta adds delta to the retailer balance and returns the new balance.
func ApplyBalanceDelta(ctx context.Context, q db.DBTX, tenantID, id int64, delta float64) (float64, error) {
	var balance float64
	err := q.QueryRow(ctx, `UPDATE retailers SET balance = balance + $3, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 RETURNING balance`, tenantID, id, delta).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return balance, err
}

func offset(page, limit int) int {
	if page <= 1 {
		return 0
	}
	return (page - 1) * limit
}

func sortOrder(sortBy string, desc bool) string {
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	switch sortBy {
	case "code":
		return "code " + dir
	case "balance":
		return "balance " + dir + ", name ASC"
	case "created_at":
		return "created_at " + dir
	case "utilization":
		return utilizationSQL + " " + dir + ", name ASC"
	default:
		return "name " + dir
	}
}

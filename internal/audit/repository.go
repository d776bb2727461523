package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/odyssey-erp/odyssey-b2b/internal/platform/db"
)

// Repository reads audit_logs.
type Repository interface {
	Window(ctx context.Context, f TimelineFilters, offset, limit int) ([]TimelineRow, error)
	All(ctx context.Context, f TimelineFilters) ([]TimelineRow, error)
}

type repository struct {
	conn db.DBTX
}

// NewRepository constructs the Postgres repository.
func NewRepository(conn db.DBTX) Repository {
	return &repository{conn: conn}
}

func timelineWhere(f TimelineFilters) *db.Where {
	w := &db.Where{}
	w.Add("tenant_id = ?", f.TenantID)
	if !f.From.IsZero() {
		w.Add("occurred_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		w.Add("occurred_at < ?", f.To.AddDate(0, 0, 1))
	}
	if f.ActorID > 0 {
		w.Add("actor_id = ?", f.ActorID)
	}
	if f.Entity != "" {
		w.Add("entity = ?", f.Entity)
	}
	if f.Action != "" {
		w.Add("action = ?", f.Action)
	}
	return w
}

const timelineSelect = `SELECT occurred_at, actor_id, action, entity, entity_id, meta FROM audit_logs`

func (r *repository) Window(ctx context.Context, f TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	w := timelineWhere(f)
	query := fmt.Sprintf("%s WHERE %s ORDER BY occurred_at DESC, id DESC LIMIT %s OFFSET %s",
		timelineSelect, w.SQL(), w.Next(1), w.Next(2))
	return r.query(ctx, query, append(w.Args(), limit, offset)...)
}

func (r *repository) All(ctx context.Context, f TimelineFilters) ([]TimelineRow, error) {
	w := timelineWhere(f)
	query := fmt.Sprintf("%s WHERE %s ORDER BY occurred_at DESC, id DESC", timelineSelect, w.SQL())
	return r.query(ctx, query, w.Args()...)
}

func (r *repository) query(ctx context.Context, query string, args ...any) ([]TimelineRow, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query timeline: %w", err)
	}
	defer rows.Close()
	var out []TimelineRow
	for rows.Next() {
		var (
			row  TimelineRow
			meta []byte
		)
		if err := rows.Scan(&row.At, &row.ActorID, &row.Action, &row.Entity, &row.EntityID, &meta); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &row.Meta); err != nil {
				return nil, fmt.Errorf("audit: decode meta: %w", err)
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

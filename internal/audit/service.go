package audit

import (
	"context"
	"errors"
	"io"

	"github.com/odyssey-erp/odyssey-b2b/internal/export"
)

// Service pages through the audit trail.
type Service struct {
	repo Repository
}

// NewService builds the audit timeline service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page, fetching a row beyond the page to detect more.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, errors.New("audit: repository not configured")
	}
	if err := checkRange(filters); err != nil {
		return Result{}, err
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	rows, err := s.repo.Window(ctx, filters, (page-1)*pageSize, pageSize+1)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	if rows == nil {
		rows = []TimelineRow{}
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export writes every matching entry as CSV.
func (s *Service) Export(ctx context.Context, filters TimelineFilters, w io.Writer) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if err := checkRange(filters); err != nil {
		return err
	}
	rows, err := s.repo.All(ctx, filters)
	if err != nil {
		return err
	}
	table := export.Table{Header: []string{"at", "actor_id", "action", "entity", "entity_id"}}
	for _, row := range rows {
		table.Rows = append(table.Rows, []string{
			export.Timestamp(row.At),
			export.Int(row.ActorID),
			row.Action,
			row.Entity,
			row.EntityID,
		})
	}
	return export.WriteCSV(w, table)
}

func checkRange(f TimelineFilters) error {
	if f.From.IsZero() || f.To.IsZero() {
		return nil
	}
	if f.From.After(f.To) || f.To.Sub(f.From) > maxDateRange {
		return ErrInvalidRange
	}
	return nil
}

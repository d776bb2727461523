package suppliers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/odyssey-erp/odyssey-b2b/internal/export"
	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

const maxCopyAttempts = 50

type Service struct {
	repo   Repository
	audit  *shared.AuditLogger
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// ListResult is one page of suppliers.
type ListResult struct {
	Suppliers  []Supplier        `json:"suppliers"`
	Pagination shared.Pagination `json:"pagination"`
}

func (s *Service) List(ctx context.Context, tenantID int64, filter ListFilter) (ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = shared.DefaultPerPage
	}
	if filter.Limit > shared.MaxPerPage {
		filter.Limit = shared.MaxPerPage
	}
	rows, total, err := s.repo.List(ctx, tenantID, filter)
	if err != nil {
		return ListResult{}, err
	}
	if rows == nil {
		rows = []Supplier{}
	}
	return ListResult{Suppliers: rows, Pagination: shared.NewPagination(filter.Page, filter.Limit, total)}, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id int64) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, ErrNotFound
	}
	return s.repo.Get(ctx, tenantID, id)
}

func (s *Service) Create(ctx context.Context, actor shared.Actor, in Input) (Supplier, error) {
	sup := in.toSupplier()
	sup.TenantID = actor.TenantID
	if err := s.validate(sup); err != nil {
		return Supplier{}, err
	}
	created, err := s.repo.Create(ctx, sup)
	if err != nil {
		return Supplier{}, err
	}
	s.record(ctx, actor, "supplier.created", created.ID, map[string]any{"code": created.Code})
	return created, nil
}

func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, in Input) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, ErrNotFound
	}
	sup := in.toSupplier()
	sup.ID = id
	sup.TenantID = actor.TenantID
	if err := s.validate(sup); err != nil {
		return Supplier{}, err
	}
	updated, err := s.repo.Update(ctx, sup)
	if err != nil {
		return Supplier{}, err
	}
	s.record(ctx, actor, "supplier.updated", id, nil)
	return updated, nil
}

// Delete removes the supplier, or deactivates it when catalog products still
// point at it.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id int64) (DeleteResult, error) {
	if _, err := s.Get(ctx, actor.TenantID, id); err != nil {
		return DeleteResult{}, err
	}
	inUse, err := s.repo.HasProducts(ctx, actor.TenantID, id)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("check supplier products: %w", err)
	}
	if !inUse {
		err = s.repo.Delete(ctx, actor.TenantID, id)
		if err == nil {
			s.record(ctx, actor, "supplier.deleted", id, nil)
			return DeleteResult{Deleted: true}, nil
		}
		if !errors.Is(err, ErrInUse) {
			return DeleteResult{}, err
		}
	}
	if err := s.repo.SetStatus(ctx, actor.TenantID, id, StatusInactive); err != nil {
		return DeleteResult{}, err
	}
	s.record(ctx, actor, "supplier.deactivated", id, nil)
	return DeleteResult{Deactivated: true}, nil
}

// BulkUpdate applies the same change to many suppliers and returns how many rows changed.
func (s *Service) BulkUpdate(ctx context.Context, actor shared.Actor, in BulkUpdateInput) (int64, error) {
	change, err := in.toChange()
	if err != nil {
		return 0, err
	}
	n, err := s.repo.BulkUpdate(ctx, actor.TenantID, change)
	if err != nil {
		return 0, err
	}
	s.record(ctx, actor, "supplier.bulk_updated", 0, map[string]any{"ids": change.IDs, "affected": n})
	return n, nil
}

// Duplicate copies a supplier under a fresh code. The copy starts inactive.
func (s *Service) Duplicate(ctx context.Context, actor shared.Actor, id int64) (Supplier, error) {
	src, err := s.Get(ctx, actor.TenantID, id)
	if err != nil {
		return Supplier{}, err
	}
	cp := src
	cp.ID = 0
	cp.Name = src.Name + " (Copy)"
	cp.Status = StatusInactive
	for attempt := 1; attempt <= maxCopyAttempts; attempt++ {
		cp.Code = CopyCode(src.Code, attempt)
		created, err := s.repo.Create(ctx, cp)
		if errors.Is(err, ErrDuplicateCode) {
			continue
		}
		if err != nil {
			return Supplier{}, err
		}
		s.record(ctx, actor, "supplier.duplicated", created.ID, map[string]any{"source_id": src.ID})
		return created, nil
	}
	return Supplier{}, fmt.Errorf("%w: no free copy code for %s", shared.ErrConflict, src.Code)
}

// CopyCode returns the code tried on the given duplicate attempt.
func CopyCode(code string, attempt int) string {
	if attempt <= 1 {
		return code + "-COPY"
	}
	return code + "-COPY-" + strconv.Itoa(attempt)
}

// Export writes the filtered suppliers as CSV, ignoring pagination.
func (s *Service) Export(ctx context.Context, tenantID int64, filter ListFilter, w io.Writer) error {
	filter.Page = 1
	filter.Limit = MaxExportRows
	rows, _, err := s.repo.List(ctx, tenantID, filter)
	if err != nil {
		return err
	}
	table := export.Table{Header: []string{
		"Code", "Name", "Contact", "Email", "Phone", "City", "Category", "Status",
		"Commission Rate", "Payment Terms", "Created At",
	}}
	for _, sup := range rows {
		table.Rows = append(table.Rows, []string{
			sup.Code, sup.Name, sup.ContactName, sup.Email, sup.Phone, sup.City, sup.Category,
			string(sup.Status), export.Money(sup.CommissionRate), strconv.Itoa(sup.PaymentTerms),
			export.Timestamp(sup.CreatedAt),
		})
	}
	return export.WriteCSV(w, table)
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action string, id int64, meta map[string]any) {
	err := s.audit.Record(ctx, shared.AuditLog{
		TenantID: actor.TenantID,
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   "supplier",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil {
		s.logger.Warn("audit supplier", slog.String("action", action), slog.Int64("supplier_id", id), slog.Any("error", err))
	}
}

package retailers

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

// Service exposes retailer reads with derived credit figures.
type Service struct {
	repo Repository
}

// NewService constructs the service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListResult is one page of retailers.
type ListResult struct {
	Retailers  []View            `json:"retailers"`
	Pagination shared.Pagination `json:"pagination"`
}

// List returns retailers matching filter, each with its credit view.
func (s *Service) List(ctx context.Context, tenantID int64, filter ListFilter) (ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = shared.DefaultPerPage
	}
	if filter.Limit > shared.MaxPerPage {
		filter.Limit = shared.MaxPerPage
	}
	rows, total, err := s.repo.List(ctx, tenantID, filter)
	if err != nil {
		return ListResult{}, fmt.Errorf("list retailers: %w", err)
	}
	views := make([]View, 0, len(rows))
	for _, r := range rows {
		views = append(views, ViewOf(r))
	}
	return ListResult{Retailers: views, Pagination: shared.NewPagination(filter.Page, filter.Limit, total)}, nil
}

// Get returns a single retailer view.
func (s *Service) Get(ctx context.Context, tenantID, id int64) (View, error) {
	if id <= 0 {
		return View{}, ErrNotFound
	}
	r, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return View{}, err
	}
	return ViewOf(r), nil
}

// Audience resolves broadcast recipients.
func (s *Service) Audience(ctx context.Context, tenantID int64, audience Audience) ([]Retailer, error) {
	return s.repo.ListAudience(ctx, tenantID, audience)
}

// Portfolio returns tenant wide credit exposure.
func (s *Service) Portfolio(ctx context.Context, tenantID int64) (Portfolio, error) {
	return s.repo.Portfolio(ctx, tenantID)
}

// ViewOf attaches the credit view to a retailer.
func ViewOf(r Retailer) View {
	return View{Retailer: r, Credit: CreditOf(r.Balance, r.CreditLimit)}
}

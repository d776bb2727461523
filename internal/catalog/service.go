package catalog

import (
	"context"

	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

// Service exposes the storefront catalog.
type Service struct {
	repo Repository
}

// NewService constructs the service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListResult is one page of products.
type ListResult struct {
	Products   []Product         `json:"products"`
	Pagination shared.Pagination `json:"pagination"`
}

// List returns active products.
func (s *Service) List(ctx context.Context, tenantID int64, filter ListFilter) (ListResult, error) {
	if filter.Limit <= 0 || filter.Limit > shared.MaxPerPage {
		filter.Limit = shared.DefaultPerPage
	}
	rows, total, err := s.repo.List(ctx, tenantID, filter)
	if err != nil {
		return ListResult{}, err
	}
	if rows == nil {
		rows = []Product{}
	}
	return ListResult{Products: rows, Pagination: shared.NewPagination(filter.Page, filter.Limit, total)}, nil
}

// Product returns an active product.
func (s *Service) Product(ctx context.Context, tenantID, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, ErrNotFound
	}
	return s.repo.GetActive(ctx, tenantID, id)
}

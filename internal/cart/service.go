package cart

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/odyssey-erp/odyssey-b2b/internal/catalog"
	"github.com/odyssey-erp/odyssey-b2b/internal/pricing"
	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

// ErrItemNotFound is returned when updating a product that is not in the cart.
var ErrItemNotFound = fmt.Errorf("%w: item not in cart", shared.ErrNotFound)

// Products looks up active catalog products.
type Products interface {
	Product(ctx context.Context, tenantID, id int64) (catalog.Product, error)
}

// Service manages retailer carts.
type Service struct {
	store    Store
	products Products
	now      func() time.Time
}

// NewService constructs the cart service.
func NewService(store Store, products Products) *Service {
	return &Service{store: store, products: products, now: time.Now}
}

// Get returns the priced cart.
func (s *Service) Get(ctx context.Context, tenantID, retailerID int64) (Cart, error) {
	items, err := s.store.Items(ctx, tenantID, retailerID)
	if err != nil {
		return Cart{}, err
	}
	return Price(items), nil
}

// AddItem adds quantity of a product, merging with an existing line.
func (s *Service) AddItem(ctx context.Context, tenantID, retailerID int64, in AddItemInput) (Cart, error) {
	if in.Quantity < 1 || in.Quantity > MaxQuantity {
		return Cart{}, fmt.Errorf("%w: quantity must be between 1 and %d", shared.ErrValidation, MaxQuantity)
	}
	product, err := s.products.Product(ctx, tenantID, in.ProductID)
	if err != nil {
		return Cart{}, err
	}
	items, err := s.store.Items(ctx, tenantID, retailerID)
	if err != nil {
		return Cart{}, err
	}
	item := Item{ProductID: product.ID, AddedAt: s.now().UTC()}
	for _, existing := range items {
		if existing.ProductID == product.ID {
			item = existing
			break
		}
	}
	qty := item.Quantity + in.Quantity
	if qty > MaxQuantity {
		return Cart{}, fmt.Errorf("%w: quantity must be between 1 and %d", shared.ErrValidation, MaxQuantity)
	}
	if qty > product.Stock {
		return Cart{}, catalog.ErrInsufficientStock
	}
	item.SKU = product.SKU
	item.Name = product.Name
	item.UnitPrice = product.UnitPrice
	item.Quantity = qty
	if err := s.store.Put(ctx, tenantID, retailerID, item); err != nil {
		return Cart{}, err
	}
	return s.Get(ctx, tenantID, retailerID)
}

// UpdateQuantity sets a line's quantity. Zero removes it.
func (s *Service) UpdateQuantity(ctx context.Context, tenantID, retailerID, productID int64, qty int) (Cart, error) {
	if qty < 0 || qty > MaxQuantity {
		return Cart{}, fmt.Errorf("%w: quantity must be between 0 and %d", shared.ErrValidation, MaxQuantity)
	}
	items, err := s.store.Items(ctx, tenantID, retailerID)
	if err != nil {
		return Cart{}, err
	}
	var (
		item  Item
		found bool
	)
	for _, existing := range items {
		if existing.ProductID == productID {
			item, found = existing, true
			break
		}
	}
	if !found {
		return Cart{}, ErrItemNotFound
	}
	if qty == 0 {
		return s.RemoveItem(ctx, tenantID, retailerID, productID)
	}
	product, err := s.products.Product(ctx, tenantID, productID)
	if err != nil {
		return Cart{}, err
	}
	if qty > product.Stock {
		return Cart{}, catalog.ErrInsufficientStock
	}
	item.Quantity = qty
	item.UnitPrice = product.UnitPrice
	item.Name = product.Name
	if err := s.store.Put(ctx, tenantID, retailerID, item); err != nil {
		return Cart{}, err
	}
	return s.Get(ctx, tenantID, retailerID)
}

// RemoveItem drops a product from the cart. Removing a missing item is not an error.
func (s *Service) RemoveItem(ctx context.Context, tenantID, retailerID, productID int64) (Cart, error) {
	if err := s.store.Remove(ctx, tenantID, retailerID, productID); err != nil {
		return Cart{}, err
	}
	return s.Get(ctx, tenantID, retailerID)
}

// Items returns the raw stored items.
func (s *Service) Items(ctx context.Context, tenantID, retailerID int64) ([]Item, error) {
	return s.store.Items(ctx, tenantID, retailerID)
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, tenantID, retailerID int64) error {
	return s.store.Clear(ctx, tenantID, retailerID)
}

// Price sorts items by name and computes line and cart totals. The flat
// delivery fee applies even when the cart is empty.
func Price(items []Item) Cart {
	sorted := append([]Item(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Name == sorted[j].Name {
			return sorted[i].ProductID < sorted[j].ProductID
		}
		return sorted[i].Name < sorted[j].Name
	})
	out := Cart{Items: make([]Line, 0, len(sorted))}
	lines := make([]pricing.Line, 0, len(sorted))
	for _, item := range sorted {
		out.Items = append(out.Items, Line{Item: item, LineTotal: pricing.LineTotal(item.Quantity, item.UnitPrice)})
		out.ItemCount += item.Quantity
		lines = append(lines, pricing.Line{Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	out.Totals = pricing.ComputeLines(lines)
	return out
}

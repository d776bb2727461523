package orders

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-b2b/internal/cart"
	"github.com/odyssey-erp/odyssey-b2b/internal/catalog"
	"github.com/odyssey-erp/odyssey-b2b/internal/events"
	"github.com/odyssey-erp/odyssey-b2b/internal/retailers"
	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

type memoryRepo struct {
	retailers map[int64]retailers.Retailer
	products  map[int64]catalog.Product
	orders    []Order
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	rs := make(map[int64]retailers.Retailer, len(m.retailers))
	for k, v := range m.retailers {
		rs[k] = v
	}
	ps := make(map[int64]catalog.Product, len(m.products))
	for k, v := range m.products {
		ps[k] = v
	}
	n := len(m.orders)
	if err := fn(ctx, m); err != nil {
		m.retailers, m.products, m.orders = rs, ps, m.orders[:n]
		return err
	}
	return nil
}

func (m *memoryRepo) LockRetailer(ctx context.Context, tenantID, id int64) (retailers.Retailer, error) {
	r, ok := m.retailers[id]
	if !ok || r.TenantID != tenantID {
		return retailers.Retailer{}, retailers.ErrNotFound
	}
	return r, nil
}

func (m *memoryRepo) LockProducts(ctx context.Context, tenantID int64, ids []int64) (map[int64]catalog.Product, error) {
	out := map[int64]catalog.Product{}
	for _, id := range ids {
		if p, ok := m.products[id]; ok && p.TenantID == tenantID {
			out[id] = p
		}
	}
	return out, nil
}

func (m *memoryRepo) DecrementStock(ctx context.Context, tenantID, productID int64, qty int) error {
	p := m.products[productID]
	if p.Stock < qty {
		return catalog.ErrInsufficientStock
	}
	p.Stock -= qty
	m.products[productID] = p
	return nil
}

func (m *memoryRepo) ApplyBalanceDelta(ctx context.Context, tenantID, retailerID int64, delta float64) (float64, error) {
	r := m.retailers[retailerID]
	r.Balance += delta
	m.retailers[retailerID] = r
	return r.Balance, nil
}

func (m *memoryRepo) Insert(ctx context.Context, o *Order) error {
	o.ID = int64(len(m.orders) + 1)
	o.CreatedAt = time.Now()
	m.orders = append(m.orders, *o)
	return nil
}

func (m *memoryRepo) Get(ctx context.Context, tenantID, id int64) (Order, error) {
	for _, o := range m.orders {
		if o.ID == id && o.TenantID == tenantID {
			return o, nil
		}
	}
	return Order{}, ErrNotFound
}

func (m *memoryRepo) ListByRetailer(ctx context.Context, tenantID, retailerID int64, page, limit int) ([]Order, int, error) {
	var out []Order
	for _, o := range m.orders {
		if o.TenantID == tenantID && o.RetailerID == retailerID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

type memoryCarts struct {
	items   map[int64][]cart.Item
	cleared []int64
}

func (c *memoryCarts) Items(ctx context.Context, tenantID, retailerID int64) ([]cart.Item, error) {
	return append([]cart.Item(nil), c.items[retailerID]...), nil
}

func (c *memoryCarts) Clear(ctx context.Context, tenantID, retailerID int64) error {
	delete(c.items, retailerID)
	c.cleared = append(c.cleared, retailerID)
	return nil
}

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memoryIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[module+key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[module+key] = true
	return nil
}

func (m *memoryIdempotency) Delete(ctx context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, module+key)
	return nil
}

type recordingPublisher struct{ events []events.Event }

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) { p.events = append(p.events, e) }

type countingCache struct{ bumps []string }

func (c *countingCache) Bump(ctx context.Context, scope string) error {
	c.bumps = append(c.bumps, scope)
	return nil
}

type fixture struct {
	svc    *Service
	repo   *memoryRepo
	carts  *memoryCarts
	pub    *recordingPublisher
	cache  *countingCache
	retail shared.Actor
}

func newFixture(limit, balance float64) *fixture {
	repo := &memoryRepo{
		retailers: map[int64]retailers.Retailer{
			5: {ID: 5, TenantID: 1, Name: "Corner Shop", Status: retailers.StatusActive, CreditLimit: limit, Balance: balance},
		},
		products: map[int64]catalog.Product{
			1: {ID: 1, TenantID: 1, SKU: "SOAP", Name: "Soap", UnitPrice: 100, Stock: 10, IsActive: true},
			2: {ID: 2, TenantID: 1, SKU: "RICE", Name: "Rice", UnitPrice: 2500, Stock: 2, IsActive: true},
		},
	}
	carts := &memoryCarts{items: map[int64][]cart.Item{
		5: {
			{ProductID: 2, SKU: "RICE", Name: "Rice", UnitPrice: 1, Quantity: 2},
			{ProductID: 1, SKU: "SOAP", Name: "Soap", UnitPrice: 1, Quantity: 3},
		},
	}}
	pub := &recordingPublisher{}
	c := &countingCache{}
	svc := NewService(Deps{
		Repo:        repo,
		Carts:       carts,
		Idempotency: &memoryIdempotency{keys: map[string]bool{}},
		Events:      pub,
		Cache:       c,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return &fixture{svc: svc, repo: repo, carts: carts, pub: pub, cache: c,
		retail: shared.Actor{TenantID: 1, UserID: 50, Role: shared.RoleRetailer, RetailerID: 5}}
}

func TestCreateOnCreditRepricesAndChargesBalance(t *testing.T) {
	f := newFixture(10000, 0)
	placed, err := f.svc.Create(context.Background(), f.retail, CreateInput{PaymentMethod: PaymentCredit}, "")
	require.NoError(t, err)

	o := placed.Order
	assert.Regexp(t, regexp.MustCompile(`^ORD-\d{8}-[0-9A-F]{6}$`), o.Number)
	require.Len(t, o.Lines, 2)
	assert.Equal(t, 5300.0, o.Subtotal)
	assert.Equal(t, 1007.0, o.Tax)
	assert.Equal(t, 0.0, o.DeliveryFee)
	assert.Equal(t, 6307.0, o.Total)
	assert.Equal(t, -6307.0, placed.RetailerBalance)

	assert.Equal(t, 7, f.repo.products[1].Stock)
	assert.Equal(t, 0, f.repo.products[2].Stock)
	assert.Equal(t, []int64{5}, f.carts.cleared)
	require.Len(t, f.pub.events, 1)
	assert.Equal(t, events.OrderCreated, f.pub.events[0].Type)
	assert.Equal(t, []string{"tenant:1"}, f.cache.bumps)
}

func TestCreateRejectsWhenCreditExceeded(t *testing.T) {
	f := newFixture(10000, -4000)
	_, err := f.svc.Create(context.Background(), f.retail, CreateInput{PaymentMethod: PaymentCredit}, "")
	require.ErrorIs(t, err, ErrCreditLimitExceeded)
	assert.ErrorIs(t, err, shared.ErrConflict)

	assert.Equal(t, 10, f.repo.products[1].Stock)
	assert.Equal(t, -4000.0, f.repo.retailers[5].Balance)
	assert.Empty(t, f.repo.orders)
	assert.Empty(t, f.carts.cleared)
	assert.Empty(t, f.pub.events)
}

func TestCashOnDeliveryLeavesBalance(t *testing.T) {
	f := newFixture(0, -100)
	placed, err := f.svc.Create(context.Background(), f.retail, CreateInput{PaymentMethod: PaymentCashOnDelivery}, "")
	require.NoError(t, err)
	assert.Equal(t, -100.0, placed.RetailerBalance)
	assert.Equal(t, -100.0, f.repo.retailers[5].Balance)
}

func TestCreateFailsOnEmptyCartAndStock(t *testing.T) {
	f := newFixture(100000, 0)
	f.carts.items[5] = nil
	_, err := f.svc.Create(context.Background(), f.retail, CreateInput{PaymentMethod: PaymentCredit}, "")
	assert.ErrorIs(t, err, ErrEmptyCart)

	f.carts.items[5] = []cart.Item{{ProductID: 2, Name: "Rice", Quantity: 3}}
	_, err = f.svc.Create(context.Background(), f.retail, CreateInput{PaymentMethod: PaymentCredit}, "")
	assert.ErrorIs(t, err, catalog.ErrInsufficientStock)
	assert.Equal(t, 2, f.repo.products[2].Stock)
}

func TestIdempotencyKeyBlocksReplayButNotRetryAfterFailure(t *testing.T) {
	f := newFixture(10000, -9000)
	_, err := f.svc.Create(context.Background(), f.retail, CreateInput{PaymentMethod: PaymentCredit}, "k-1")
	require.ErrorIs(t, err, ErrCreditLimitExceeded)

	f.repo.retailers[5] = retailers.Retailer{ID: 5, TenantID: 1, Status: retailers.StatusActive, CreditLimit: 10000}
	_, err = f.svc.Create(context.Background(), f.retail, CreateInput{PaymentMethod: PaymentCredit}, "k-1")
	require.NoError(t, err)

	f.carts.items[5] = []cart.Item{{ProductID: 1, Name: "Soap", Quantity: 1}}
	_, err = f.svc.Create(context.Background(), f.retail, CreateInput{PaymentMethod: PaymentCredit}, "k-1")
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestSuspendedRetailerCannotOrder(t *testing.T) {
	f := newFixture(10000, 0)
	r := f.repo.retailers[5]
	r.Status = retailers.StatusSuspended
	f.repo.retailers[5] = r
	_, err := f.svc.Create(context.Background(), f.retail, CreateInput{PaymentMethod: PaymentCashOnDelivery}, "")
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestGetHidesOtherRetailersOrders(t *testing.T) {
	f := newFixture(10000, 0)
	placed, err := f.svc.Create(context.Background(), f.retail, CreateInput{PaymentMethod: PaymentCredit}, "")
	require.NoError(t, err)

	other := f.retail
	other.RetailerID = 6
	_, err = f.svc.Get(context.Background(), other, placed.Order.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	list, err := f.svc.List(context.Background(), f.retail, 1, 20)
	require.NoError(t, err)
	assert.Len(t, list.Orders, 1)
}

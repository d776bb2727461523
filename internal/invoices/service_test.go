package invoices

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/odyssey-b2b/internal/orders"
	"github.com/odyssey-erp/odyssey-b2b/internal/pricing"
	"github.com/odyssey-erp/odyssey-b2b/internal/retailers"
	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
	"github.com/odyssey-erp/odyssey-b2b/report"
)

type memoryRepo struct {
	orders   map[int64]orders.Order
	invoices []Invoice
	counters map[int]int64
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	n := len(m.invoices)
	counters := map[int]int64{}
	for k, v := range m.counters {
		counters[k] = v
	}
	if err := fn(ctx, m); err != nil {
		m.invoices = m.invoices[:n]
		m.counters = counters
		return err
	}
	return nil
}

func (m *memoryRepo) LoadOrder(ctx context.Context, tenantID, orderID int64) (orders.Order, error) {
	o, ok := m.orders[orderID]
	if !ok || o.TenantID != tenantID {
		return orders.Order{}, orders.ErrNotFound
	}
	return o, nil
}

func (m *memoryRepo) NextNumber(ctx context.Context, tenantID int64, year int) (string, error) {
	m.counters[year]++
	return FormatNumber(year, m.counters[year]), nil
}

func (m *memoryRepo) Insert(ctx context.Context, inv *Invoice) error {
	for _, existing := range m.invoices {
		if existing.OrderID == inv.OrderID {
			return ErrAlreadyInvoiced
		}
	}
	inv.ID = int64(len(m.invoices) + 1)
	m.invoices = append(m.invoices, *inv)
	return nil
}

func (m *memoryRepo) Get(ctx context.Context, tenantID, id int64) (Invoice, error) {
	for _, inv := range m.invoices {
		if inv.ID == id && inv.TenantID == tenantID {
			return inv, nil
		}
	}
	return Invoice{}, ErrNotFound
}

type stubRetailers struct{}

func (stubRetailers) Get(ctx context.Context, tenantID, id int64) (retailers.View, error) {
	return retailers.View{Retailer: retailers.Retailer{ID: id, Code: "R-9", Name: "Corner & Sons", City: "Lusaka"}}, nil
}

type captureRenderer struct {
	html []byte
	err  error
}

func (c *captureRenderer) RenderHTML(ctx context.Context, html []byte) ([]byte, error) {
	c.html = html
	if c.err != nil {
		return nil, c.err
	}
	return []byte("%PDF"), nil
}

func newTestService(t *testing.T, renderer Renderer) (*Service, *memoryRepo) {
	t.Helper()
	printer, err := NewPrinter(language.English)
	require.NoError(t, err)
	repo := &memoryRepo{
		counters: map[int]int64{},
		orders: map[int64]orders.Order{
			1: {ID: 1, TenantID: 1, RetailerID: 9, Status: orders.StatusPending, Lines: []orders.Line{
				{SKU: "RICE", Name: "Rice", Quantity: 2, UnitPrice: 1234.5},
				{SKU: "SOAP", Name: "Soap", Quantity: 3, UnitPrice: 10},
			}},
			2: {ID: 2, TenantID: 1, RetailerID: 9, Status: orders.StatusCancelled},
		},
	}
	svc := NewService(Deps{Repo: repo, Retailers: stubRetailers{}, Printer: printer, Renderer: renderer})
	svc.now = func() time.Time { return time.Date(2024, 12, 20, 15, 0, 0, 0, time.UTC) }
	return svc, repo
}

var admin = shared.Actor{TenantID: 1, UserID: 2, Role: shared.RoleAdmin}

func TestGenerateNumbersAndTotals(t *testing.T) {
	svc, _ := newTestService(t, &captureRenderer{})
	inv, err := svc.Generate(context.Background(), admin, GenerateInput{OrderID: 1})
	require.NoError(t, err)

	assert.Equal(t, "INV-2024-000001", inv.Number)
	assert.Equal(t, 2499.0, inv.Subtotal)
	assert.Equal(t, pricing.Compute(2499), inv.Totals)
	assert.Equal(t, 300.0, inv.DeliveryFee)
	assert.Equal(t, time.Date(2025, 1, 19, 0, 0, 0, 0, time.UTC), inv.DueDate)
	assert.Equal(t, StatusIssued, inv.Status)
	require.Len(t, inv.Lines, 2)
	assert.Equal(t, 2469.0, inv.Lines[0].LineTotal)
}

func TestGenerateRejectsDuplicatesAndCancelledOrders(t *testing.T) {
	svc, repo := newTestService(t, &captureRenderer{})
	_, err := svc.Generate(context.Background(), admin, GenerateInput{OrderID: 1})
	require.NoError(t, err)

	_, err = svc.Generate(context.Background(), admin, GenerateInput{OrderID: 1})
	assert.ErrorIs(t, err, ErrAlreadyInvoiced)
	assert.EqualValues(t, 1, repo.counters[2024])

	_, err = svc.Generate(context.Background(), admin, GenerateInput{OrderID: 2})
	assert.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.Generate(context.Background(), admin, GenerateInput{OrderID: 404})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRenderPDFFormatsAmounts(t *testing.T) {
	renderer := &captureRenderer{}
	svc, _ := newTestService(t, renderer)
	inv, err := svc.Generate(context.Background(), admin, GenerateInput{OrderID: 1})
	require.NoError(t, err)

	pdf, name, err := svc.RenderPDF(context.Background(), admin.TenantID, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf))
	assert.Equal(t, "INV-2024-000001.pdf", name)

	html := string(renderer.html)
	assert.Contains(t, html, "INV-2024-000001")
	assert.Contains(t, html, "1,234.50")
	assert.Contains(t, html, "2,469.00")
	assert.Contains(t, html, "Corner &amp; Sons")
	assert.Contains(t, html, "January 19, 2025")
}

func TestStatusForPaid(t *testing.T) {
	assert.Equal(t, StatusIssued, StatusForPaid(0, 100))
	assert.Equal(t, StatusPartiallyPaid, StatusForPaid(40, 100))
	assert.Equal(t, StatusPaid, StatusForPaid(100, 100))
	assert.Equal(t, StatusPaid, StatusForPaid(120, 100))
}

func TestPDFEndpointMapsRendererFailures(t *testing.T) {
	renderer := &captureRenderer{err: report.ErrUnavailable}
	svc, _ := newTestService(t, renderer)
	inv, err := svc.Generate(context.Background(), admin, GenerateInput{OrderID: 1})
	require.NoError(t, err)

	r := chi.NewRouter()
	NewHandler(nil, svc).MountRoutes(r)
	do := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req = req.WithContext(shared.ContextWithActor(req.Context(), admin))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr
	}

	rr := do("/" + strconv.FormatInt(inv.ID, 10) + "/pdf")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	renderer.err = errors.New("boom")
	rr = do("/" + strconv.FormatInt(inv.ID, 10) + "/pdf")
	assert.Equal(t, http.StatusBadGateway, rr.Code)

	renderer.err = nil
	rr = do("/" + strconv.FormatInt(inv.ID, 10) + "/pdf")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))

	rr = do("/99/pdf")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

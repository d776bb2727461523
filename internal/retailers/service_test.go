package retailers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

type memoryRepo struct {
	rows       []Retailer
	lastFilter ListFilter
}

func (m *memoryRepo) List(ctx context.Context, tenantID int64, filter ListFilter) ([]Retailer, int, error) {
	m.lastFilter = filter
	var out []Retailer
	for _, r := range m.rows {
		if r.TenantID != tenantID {
			continue
		}
		if filter.Tier != "" && TierFor(r.Balance, r.CreditLimit) != filter.Tier {
			continue
		}
		out = append(out, r)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(ctx context.Context, tenantID, id int64) (Retailer, error) {
	for _, r := range m.rows {
		if r.TenantID == tenantID && r.ID == id {
			return r, nil
		}
	}
	return Retailer{}, ErrNotFound
}

func (m *memoryRepo) ListAudience(ctx context.Context, tenantID int64, audience Audience) ([]Retailer, error) {
	return m.rows, nil
}

func (m *memoryRepo) Portfolio(ctx context.Context, tenantID int64) (Portfolio, error) {
	var positions [][2]float64
	for _, r := range m.rows {
		positions = append(positions, [2]float64{r.Balance, r.CreditLimit})
	}
	return BuildPortfolio(positions), nil
}

func seededRepo() *memoryRepo {
	return &memoryRepo{rows: []Retailer{
		{ID: 1, TenantID: 1, Code: "R-1", Name: "Alpha", CreditLimit: 10000, Balance: -1000},
		{ID: 2, TenantID: 1, Code: "R-2", Name: "Beta", CreditLimit: 10000, Balance: -9500},
		{ID: 3, TenantID: 1, Code: "R-3", Name: "Gamma", CreditLimit: 5000, Balance: -6000},
		{ID: 4, TenantID: 2, Code: "R-4", Name: "Other tenant", CreditLimit: 100, Balance: 0},
	}}
}

func TestListAttachesCreditViewAndClampsLimit(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo)

	res, err := svc.List(context.Background(), 1, ListFilter{Page: 1, Limit: 5000})
	require.NoError(t, err)
	require.Len(t, res.Retailers, 3)
	assert.Equal(t, shared.MaxPerPage, repo.lastFilter.Limit)
	assert.Equal(t, TierGood, res.Retailers[0].Credit.Tier)
	assert.Equal(t, TierHigh, res.Retailers[1].Credit.Tier)
	assert.Equal(t, TierOver, res.Retailers[2].Credit.Tier)
	assert.Equal(t, 3, res.Pagination.Total)
}

func TestGetIsTenantScoped(t *testing.T) {
	svc := NewService(seededRepo())
	_, err := svc.Get(context.Background(), 1, 4)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	view, err := svc.Get(context.Background(), 2, 4)
	require.NoError(t, err)
	assert.Equal(t, "Other tenant", view.Name)
}

func TestBuildPortfolio(t *testing.T) {
	p := BuildPortfolio([][2]float64{{-1000, 10000}, {-9500, 10000}, {-6000, 5000}, {200, 0}})
	assert.Equal(t, 4, p.RetailerCount)
	assert.Equal(t, 25000.0, p.TotalCreditLimit)
	assert.Equal(t, 16500.0, p.TotalOutstanding)
	assert.Equal(t, 66.0, p.Utilization)
	assert.Equal(t, 2, p.ByTier[TierGood])
	assert.Equal(t, 1, p.ByTier[TierHigh])
	assert.Equal(t, 1, p.ByTier[TierOver])
	assert.Equal(t, 0, p.ByTier[TierMedium])
}

func TestHandlerListFiltersByTier(t *testing.T) {
	h := NewHandler(nil, NewService(seededRepo()))
	r := chi.NewRouter()
	h.MountRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/?tier=over", nil)
	req = req.WithContext(shared.ContextWithActor(req.Context(), shared.Actor{TenantID: 1, UserID: 1, Role: shared.RoleAdmin}))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var body ListResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Retailers, 1)
	assert.Equal(t, "Gamma", body.Retailers[0].Name)

	req = httptest.NewRequest(http.MethodGet, "/?tier=purple", nil)
	req = req.WithContext(shared.ContextWithActor(req.Context(), shared.Actor{TenantID: 1, UserID: 1, Role: shared.RoleAdmin}))
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

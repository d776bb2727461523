package audit

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

type memoryRepo struct {
	rows       []TimelineRow
	lastFilter TimelineFilters
	lastOffset int
	lastLimit  int
	err        error
}

func (m *memoryRepo) Window(_ context.Context, f TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	m.lastFilter, m.lastOffset, m.lastLimit = f, offset, limit
	if m.err != nil {
		return nil, m.err
	}
	if offset >= len(m.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.rows) {
		end = len(m.rows)
	}
	return m.rows[offset:end], nil
}

func (m *memoryRepo) All(_ context.Context, f TimelineFilters) ([]TimelineRow, error) {
	m.lastFilter = f
	return m.rows, m.err
}

func sampleRows(n int) []TimelineRow {
	base := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	out := make([]TimelineRow, n)
	for i := range out {
		out[i] = TimelineRow{At: base.Add(-time.Duration(i) * time.Hour), ActorID: 1, Action: "payment.recorded", Entity: "payment", EntityID: "p-" + string(rune('a'+i))}
	}
	return out
}

func TestTimelinePagesWithLookAhead(t *testing.T) {
	repo := &memoryRepo{rows: sampleRows(5)}
	svc := NewService(repo)

	res, err := svc.Timeline(context.Background(), TimelineFilters{TenantID: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)
	assert.Equal(t, PagingInfo{Page: 1, PageSize: 2, HasNext: true, NextPage: 2}, res.Paging)
	assert.Equal(t, 3, repo.lastLimit)

	res, err = svc.Timeline(context.Background(), TimelineFilters{TenantID: 1, PageSize: 2, Page: 3})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)
	assert.Equal(t, 4, repo.lastOffset)
	assert.False(t, res.Paging.HasNext)
	assert.Equal(t, 2, res.Paging.PrevPage)
}

func TestTimelineClampsPageSizeAndReturnsEmptySlice(t *testing.T) {
	repo := &memoryRepo{}
	res, err := NewService(repo).Timeline(context.Background(), TimelineFilters{TenantID: 1, PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, res.Paging.PageSize)
	assert.NotNil(t, res.Rows)
	assert.Empty(t, res.Rows)
}

func TestTimelineRejectsBadRange(t *testing.T) {
	svc := NewService(&memoryRepo{})
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Timeline(context.Background(), TimelineFilters{From: from, To: from.AddDate(0, 0, -1)})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Timeline(context.Background(), TimelineFilters{From: from, To: from.AddDate(0, 0, 91)})
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestExportWritesCSV(t *testing.T) {
	svc := NewService(&memoryRepo{rows: sampleRows(2)})
	var buf bytes.Buffer
	require.NoError(t, svc.Export(context.Background(), TimelineFilters{TenantID: 1}, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "at,actor_id,action,entity,entity_id", lines[0])
	assert.Equal(t, "2024-05-10T09:00:00Z,1,payment.recorded,payment,p-a", lines[1])
}

func TestServicePropagatesRepositoryErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewService(&memoryRepo{err: boom}).Timeline(context.Background(), TimelineFilters{})
	assert.ErrorIs(t, err, boom)
}

func newTestHandler(repo *memoryRepo) http.Handler {
	h := NewHandler(nil, NewService(repo))
	h.now = func() time.Time { return time.Date(2024, 5, 10, 15, 30, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.ContextWithActor(r.Context(), shared.Actor{TenantID: 4, UserID: 1, Role: shared.RoleAdmin})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	h.MountRoutes(r)
	return r
}

func TestHandlerDefaultsToLastWeekForCallerTenant(t *testing.T) {
	repo := &memoryRepo{rows: sampleRows(1)}
	rr := httptest.NewRecorder()
	newTestHandler(repo).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?entity=order&actor_id=9", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(4), repo.lastFilter.TenantID)
	assert.Equal(t, int64(9), repo.lastFilter.ActorID)
	assert.Equal(t, "order", repo.lastFilter.Entity)
	assert.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), repo.lastFilter.To)
	assert.Equal(t, time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC), repo.lastFilter.From)
	assert.Contains(t, rr.Body.String(), `"has_next":false`)
}

func TestHandlerRejectsMalformedQuery(t *testing.T) {
	for _, target := range []string{"/?from=10-05-2024", "/?page=0", "/?actor_id=x", "/?from=2024-01-01&to=2024-06-01"} {
		rr := httptest.NewRecorder()
		newTestHandler(&memoryRepo{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
	}
}

func TestHandlerExportIsRateLimited(t *testing.T) {
	handler := newTestHandler(&memoryRepo{rows: sampleRows(1)})
	var last int
	for i := 0; i <= exportRateLimit; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/export", nil))
		if i == 0 {
			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Contains(t, rr.Header().Get("Content-Disposition"), "audit-2024-05-10.csv")
		}
		last = rr.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

func TestIssueAndParseRoundTrip(t *testing.T) {
	tokens := NewTokens("secret", "odyssey")
	actor := shared.Actor{TenantID: 3, UserID: 9, Role: shared.RoleRetailer, RetailerID: 44}
	raw, err := tokens.Issue(actor, time.Hour)
	require.NoError(t, err)

	claims, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, actor, claims.Actor())
}

func TestParseRejectsExpiredAndForeignTokens(t *testing.T) {
	tokens := NewTokens("secret", "odyssey")
	raw, err := tokens.Issue(shared.Actor{TenantID: 1, UserID: 1, Role: shared.RoleAdmin}, time.Minute)
	require.NoError(t, err)

	tokens.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = tokens.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewTokens("other-secret", "odyssey")
	raw, err = other.Issue(shared.Actor{TenantID: 1, UserID: 1, Role: shared.RoleAdmin}, time.Minute)
	require.NoError(t, err)
	_, err = NewTokens("secret", "odyssey").Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsRetailerWithoutRetailerID(t *testing.T) {
	tokens := NewTokens("secret", "")
	raw, err := tokens.Issue(shared.Actor{TenantID: 1, UserID: 1, Role: shared.RoleRetailer}, time.Minute)
	require.NoError(t, err)
	_, err = tokens.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddlewareEnforcesRoles(t *testing.T) {
	tokens := NewTokens("secret", "")
	mw := Middleware{Tokens: tokens}
	handler := mw.Authenticate(mw.RequireRole(shared.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := shared.ActorFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, int64(5), actor.TenantID)
		w.WriteHeader(http.StatusNoContent)
	})))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	retailerToken, err := tokens.Issue(shared.Actor{TenantID: 5, UserID: 2, Role: shared.RoleRetailer, RetailerID: 8}, time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+retailerToken)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	adminToken, err := tokens.Issue(shared.Actor{TenantID: 5, UserID: 1, Role: shared.RoleAdmin}, time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+adminToken)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

type sampleRequest struct {
	Name   string  `json:"name" validate:"required,max=10"`
	Email  string  `json:"email" validate:"omitempty,email"`
	Amount float64 `json:"amount" validate:"gt=0"`
}

func TestDecodeJSONValidates(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"","email":"nope","amount":0}`))
	var target sampleRequest
	err := DecodeJSON(req, &target)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrValidation))
	assert.Contains(t, err.Error(), "name is required")
	assert.Contains(t, err.Error(), "email must be a valid email")
	assert.Contains(t, err.Error(), "amount must be greater than 0")
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ok","amount":1,"extra":true}`))
	var target sampleRequest
	err := DecodeJSON(req, &target)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestDecodeJSONEmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	var target sampleRequest
	err := DecodeJSON(req, &target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request body is empty")
}

func TestRespondErrorMapsCategories(t *testing.T) {
	cases := map[error]int{
		shared.ErrNotFound:            http.StatusNotFound,
		shared.ErrConflict:            http.StatusConflict,
		shared.ErrValidation:          http.StatusBadRequest,
		shared.ErrForbidden:           http.StatusForbidden,
		shared.ErrUnauthorized:        http.StatusUnauthorized,
		errors.New("database exploded"): http.StatusInternalServerError,
	}
	for err, status := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, err)
		assert.Equal(t, status, rr.Code, err.Error())
	}

	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("pq: secret internals"))
	assert.NotContains(t, rr.Body.String(), "secret internals")
}

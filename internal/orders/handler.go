package orders

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-b2b/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

// IdempotencyHeader carries the client supplied replay key.
const IdempotencyHeader = "Idempotency-Key"

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Show)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	placed, err := h.service.Create(r.Context(), actor, in, r.Header.Get(IdempotencyHeader))
	if err != nil {
		httpx.Fail(h.logger, w, r, "create order failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, placed)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	page := shared.PageFromQuery(r.URL.Query())
	result, err := h.service.List(r.Context(), actor, page.Page, page.Limit)
	if err != nil {
		httpx.Fail(h.logger, w, r, "list orders failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order ID")
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	order, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		httpx.Fail(h.logger, w, r, "get order failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

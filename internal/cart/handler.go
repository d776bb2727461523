package cart

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-b2b/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

// Handler serves the retailer cart.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers cart routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Post("/items", h.AddItem)
	r.Patch("/items/{productID}", h.UpdateQuantity)
	r.Delete("/items/{productID}", h.RemoveItem)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	c, err := h.service.Get(r.Context(), actor.TenantID, actor.RetailerID)
	if err != nil {
		httpx.Fail(h.logger, w, r, "load cart failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var in AddItemInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	c, err := h.service.AddItem(r.Context(), actor.TenantID, actor.RetailerID, in)
	if err != nil {
		httpx.Fail(h.logger, w, r, "add cart item failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	var in UpdateQuantityInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	c, err := h.service.UpdateQuantity(r.Context(), actor.TenantID, actor.RetailerID, productID, *in.Quantity)
	if err != nil {
		httpx.Fail(h.logger, w, r, "update cart item failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	c, err := h.service.RemoveItem(r.Context(), actor.TenantID, actor.RetailerID, productID)
	if err != nil {
		httpx.Fail(h.logger, w, r, "remove cart item failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product ID")
		return 0, false
	}
	return id, true
}

package catalog

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-b2b/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

// Handler serves the retailer catalog.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.List)
	r.Get("/products/{id}", h.Show)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	q := r.URL.Query()
	page := shared.PageFromQuery(q)
	supplierID, _ := strconv.ParseInt(q.Get("supplier_id"), 10, 64)
	result, err := h.service.List(r.Context(), actor.TenantID, ListFilter{
		Search:     q.Get("search"),
		SupplierID: supplierID,
		Page:       page.Page,
		Limit:      page.Limit,
	})
	if err != nil {
		httpx.Fail(h.logger, w, r, "list products failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product ID")
		return
	}
	product, err := h.service.Product(r.Context(), actor.TenantID, id)
	if err != nil {
		httpx.Fail(h.logger, w, r, "get product failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

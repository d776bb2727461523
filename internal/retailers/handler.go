package retailers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-b2b/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

// Handler serves admin retailer endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers retailer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Show)
}

// List handles retailers.getAll.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	q := r.URL.Query()
	page := shared.PageFromQuery(q)

	filter := ListFilter{
		Search: q.Get("search"),
		City:   strings.TrimSpace(q.Get("city")),
		Page:   page.Page,
		Limit:  page.Limit,
		SortBy: page.SortBy,
		Desc:   page.Desc(),
	}
	if status := strings.TrimSpace(q.Get("status")); status != "" {
		switch Status(status) {
		case StatusActive, StatusSuspended, StatusInactive:
			filter.Status = Status(status)
		default:
			httpx.RespondError(w, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, status))
			return
		}
	}
	if raw := q.Get("tier"); raw != "" {
		tier, ok := ParseTier(raw)
		if !ok {
			httpx.RespondError(w, fmt.Errorf("%w: unknown tier %q", shared.ErrValidation, raw))
			return
		}
		filter.Tier = tier
	}

	result, err := h.service.List(r.Context(), actor.TenantID, filter)
	if err != nil {
		httpx.Fail(h.logger, w, r, "list retailers failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// Show returns one retailer.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid retailer ID")
		return
	}
	view, err := h.service.Get(r.Context(), actor.TenantID, id)
	if err != nil {
		httpx.Fail(h.logger, w, r, "get retailer failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

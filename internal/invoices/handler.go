package invoices

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-b2b/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
	"github.com/odyssey-erp/odyssey-b2b/report"
)

// Handler serves invoice endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.Generate)
	r.Get("/{id}", h.Show)
	r.Get("/{id}/pdf", h.PDF)
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var in GenerateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	inv, err := h.service.Generate(r.Context(), actor, in)
	if err != nil {
		httpx.Fail(h.logger, w, r, "generate invoice failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceID(w, r)
	if !ok {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	inv, err := h.service.Get(r.Context(), actor.TenantID, id)
	if err != nil {
		httpx.Fail(h.logger, w, r, "get invoice failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) PDF(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceID(w, r)
	if !ok {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	pdf, filename, err := h.service.RenderPDF(r.Context(), actor.TenantID, id)
	if err != nil {
		if errors.Is(err, report.ErrUnavailable) {
			httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "pdf rendering is not configured")
			return
		}
		if !errors.Is(err, shared.ErrNotFound) {
			h.logger.Error("render invoice pdf", slog.Any("error", err), slog.Int64("invoice_id", id))
			httpx.Problem(w, http.StatusBadGateway, "Bad Gateway", "pdf rendering failed")
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.Attachment(w, "application/pdf", filename, pdf)
}

func invoiceID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice ID")
		return 0, false
	}
	return id, true
}

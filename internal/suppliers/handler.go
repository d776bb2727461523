package suppliers

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-b2b/internal/export"
	"github.com/odyssey-erp/odyssey-b2b/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	result, err := h.service.List(r.Context(), actor.TenantID, filterFromQuery(r.URL.Query()))
	if err != nil {
		httpx.Fail(h.logger, w, r, "list suppliers failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := supplierID(w, r)
	if !ok {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	supplier, err := h.service.Get(r.Context(), actor.TenantID, id)
	if err != nil {
		httpx.Fail(h.logger, w, r, "get supplier failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, supplier)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	created, err := h.service.Create(r.Context(), actor, in)
	if err != nil {
		httpx.Fail(h.logger, w, r, "create supplier failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := supplierID(w, r)
	if !ok {
		return
	}
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	updated, err := h.service.Update(r.Context(), actor, id, in)
	if err != nil {
		httpx.Fail(h.logger, w, r, "update supplier failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := supplierID(w, r)
	if !ok {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	result, err := h.service.Delete(r.Context(), actor, id)
	if err != nil {
		httpx.Fail(h.logger, w, r, "delete supplier failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	var in BulkUpdateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	n, err := h.service.BulkUpdate(r.Context(), actor, in)
	if err != nil {
		httpx.Fail(h.logger, w, r, "bulk update suppliers failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (h *Handler) Duplicate(w http.ResponseWriter, r *http.Request) {
	id, ok := supplierID(w, r)
	if !ok {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	copied, err := h.service.Duplicate(r.Context(), actor, id)
	if err != nil {
		httpx.Fail(h.logger, w, r, "duplicate supplier failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, copied)
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), actor.TenantID, filterFromQuery(r.URL.Query()), &buf); err != nil {
		httpx.Fail(h.logger, w, r, "export suppliers failed", err)
		return
	}
	httpx.Attachment(w, "text/csv; charset=utf-8", export.Filename("suppliers", time.Now()), buf.Bytes())
}

func supplierID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid supplier ID")
		return 0, false
	}
	return id, true
}

func filterFromQuery(q url.Values) ListFilter {
	page := shared.PageFromQuery(q)
	filter := ListFilter{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		Page:     page.Page,
		Limit:    page.Limit,
		SortBy:   page.SortBy,
		Desc:     page.Desc(),
	}
	switch Status(strings.ToLower(q.Get("status"))) {
	case StatusActive:
		filter.Status = StatusActive
	case StatusInactive:
		filter.Status = StatusInactive
	}
	return filter
}

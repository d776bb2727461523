package audit

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/odyssey-b2b/internal/export"
	"github.com/odyssey-erp/odyssey-b2b/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

const (
	exportRateLimit  = 10
	exportRateWindow = time.Minute
)

// Handler serves the admin audit trail.
type Handler struct {
	logger  *slog.Logger
	service *Service
	now     func() time.Time
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, now: time.Now}
}

// MountRoutes registers the timeline and a rate limited CSV export.
func (h *Handler) MountRoutes(r chi.Router) {
	limiter := httprate.Limit(exportRateLimit, exportRateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "export rate limit exceeded")
		}),
	)
	r.Get("/", h.Timeline)
	r.With(limiter).Get("/export", h.Export)
}

// Timeline lists one page of audit entries.
func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		httpx.Fail(h.logger, w, r, "load audit timeline failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// Export downloads the filtered trail as CSV.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), filters, &buf); err != nil {
		httpx.Fail(h.logger, w, r, "export audit timeline failed", err)
		return
	}
	httpx.Attachment(w, "text/csv; charset=utf-8", export.Filename("audit", h.now()), buf.Bytes())
}

func (h *Handler) parseFilters(r *http.Request) (TimelineFilters, error) {
	actor, _ := shared.ActorFromContext(r.Context())
	q := r.URL.Query()

	to := h.now().UTC().Truncate(24 * time.Hour)
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return TimelineFilters{}, fmt.Errorf("%w: to must be YYYY-MM-DD", shared.ErrValidation)
		}
		to = parsed
	}
	from := to.Add(-defaultDateRange)
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return TimelineFilters{}, fmt.Errorf("%w: from must be YYYY-MM-DD", shared.ErrValidation)
		}
		from = parsed
	}

	filters := TimelineFilters{
		TenantID: actor.TenantID,
		From:     from,
		To:       to,
		Entity:   strings.TrimSpace(q.Get("entity")),
		Action:   strings.TrimSpace(q.Get("action")),
	}
	var err error
	if filters.ActorID, err = positiveParam(q.Get("actor_id"), "actor_id"); err != nil {
		return TimelineFilters{}, err
	}
	page, err := positiveParam(q.Get("page"), "page")
	if err != nil {
		return TimelineFilters{}, err
	}
	size, err := positiveParam(q.Get("page_size"), "page_size")
	if err != nil {
		return TimelineFilters{}, err
	}
	filters.Page, filters.PageSize = int(page), int(size)
	return filters, nil
}

func positiveParam(raw, name string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", shared.ErrValidation, name)
	}
	return v, nil
}

func rateLimitKey(r *http.Request) (string, error) {
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		return fmt.Sprintf("user:%d:%d", actor.TenantID, actor.UserID), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

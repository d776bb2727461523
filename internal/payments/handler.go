package payments

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-b2b/internal/export"
	"github.com/odyssey-erp/odyssey-b2b/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

// Handler serves payment, reconciliation and reporting endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	adminOnly func(http.Handler) http.Handler
}

// NewHandler constructs the handler. adminOnly guards everything except
// recording a payment, which collectors may also do.
func NewHandler(logger *slog.Logger, service *Service, adminOnly func(http.Handler) http.Handler) *Handler {
	if adminOnly == nil {
		adminOnly = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{logger: logger, service: service, adminOnly: adminOnly}
}

// MountRoutes registers payment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.Record)
	r.Group(func(r chi.Router) {
		r.Use(h.adminOnly)
		r.Post("/reconcile", h.Reconcile)
		r.Get("/cash-collection", h.CashCollection)
		r.Get("/summary", h.Summary)
	})
}

func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	var in RecordInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	out, err := h.service.RecordPayment(r.Context(), actor, in)
	if err != nil {
		httpx.Fail(h.logger, w, r, "record payment failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, out)
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var in ReconcileInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	rec, err := h.service.ReconcileCash(r.Context(), actor, in)
	if err != nil {
		httpx.Fail(h.logger, w, r, "reconcile cash failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) CashCollection(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period, err := periodFromQuery(q, h.service.now())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := CollectionFilter{Period: period}
	if raw := q.Get("collector_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid collector_id")
			return
		}
		filter.CollectorID = id
	}
	actor, _ := shared.ActorFromContext(r.Context())
	report, err := h.service.CashCollectionReport(r.Context(), actor.TenantID, filter)
	if err != nil {
		httpx.Fail(h.logger, w, r, "cash collection report failed", err)
		return
	}
	if q.Get("format") == "csv" {
		var buf bytes.Buffer
		if err := WriteCollectionCSV(&buf, report); err != nil {
			httpx.Fail(h.logger, w, r, "cash collection csv failed", err)
			return
		}
		httpx.Attachment(w, "text/csv; charset=utf-8", export.Filename("cash-collection", time.Now()), buf.Bytes())
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	period, err := periodFromQuery(r.URL.Query(), h.service.now())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	summary, err := h.service.FinancialSummary(r.Context(), actor.TenantID, period)
	if err != nil {
		httpx.Fail(h.logger, w, r, "financial summary failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

// periodFromQuery reads from/to, defaulting to month to date when both are absent.
func periodFromQuery(q url.Values, now time.Time) (Period, error) {
	from, to := q.Get("from"), q.Get("to")
	if from == "" && to == "" {
		return MonthToDate(now), nil
	}
	mtd := MonthToDate(now)
	if from == "" {
		from = mtd.From.Format(dateLayout)
	}
	if to == "" {
		to = mtd.To.Format(dateLayout)
	}
	return ParsePeriod(from, to)
}

package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/odyssey-b2b/internal/audit"
	"github.com/odyssey-erp/odyssey-b2b/internal/auth"
	"github.com/odyssey-erp/odyssey-b2b/internal/cart"
	"github.com/odyssey-erp/odyssey-b2b/internal/catalog"
	"github.com/odyssey-erp/odyssey-b2b/internal/communications"
	"github.com/odyssey-erp/odyssey-b2b/internal/invoices"
	"github.com/odyssey-erp/odyssey-b2b/internal/observability"
	"github.com/odyssey-erp/odyssey-b2b/internal/orders"
	"github.com/odyssey-erp/odyssey-b2b/internal/payments"
	"github.com/odyssey-erp/odyssey-b2b/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-b2b/internal/retailers"
	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
	"github.com/odyssey-erp/odyssey-b2b/internal/suppliers"
	"github.com/odyssey-erp/odyssey-b2b/jobs"
	"github.com/odyssey-erp/odyssey-b2b/report"
)

// RouterParams groups dependencies for building the HTTP router.
// Nil handlers are left unmounted.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Auth    auth.Middleware
	Metrics *observability.Metrics

	RetailersHandler      *retailers.Handler
	SuppliersHandler      *suppliers.Handler
	PaymentsHandler       *payments.Handler
	InvoicesHandler       *invoices.Handler
	CommunicationsHandler *communications.Handler
	AuditHandler          *audit.Handler

	CatalogHandler *catalog.Handler
	CartHandler    *cart.Handler
	OrdersHandler  *orders.Handler
	InboxHandler   *communications.InboxHandler

	ReportHandler *report.Handler
	JobHandler    *jobs.Handler
}

// AdminOnly restricts a route group to the admin role.
func (p RouterParams) AdminOnly() func(http.Handler) http.Handler {
	return p.Auth.RequireRole(shared.AdminRoles()...)
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", r.Method+" is not supported here")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.ReportHandler != nil {
		r.Route("/report", params.ReportHandler.MountRoutes)
	}

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(params.Auth.Authenticate)

		if params.PaymentsHandler != nil {
			r.With(params.Auth.RequireRole(shared.PaymentRecorderRoles()...)).
				Route("/payments", params.PaymentsHandler.MountRoutes)
		}

		r.Group(func(r chi.Router) {
			r.Use(params.AdminOnly())
			if params.RetailersHandler != nil {
				r.Route("/retailers", params.RetailersHandler.MountRoutes)
			}
			if params.SuppliersHandler != nil {
				r.Route("/suppliers", params.SuppliersHandler.MountRoutes)
			}
			if params.InvoicesHandler != nil {
				r.Route("/invoices", params.InvoicesHandler.MountRoutes)
			}
			if params.CommunicationsHandler != nil {
				r.Route("/communications", params.CommunicationsHandler.MountRoutes)
			}
			if params.AuditHandler != nil {
				r.Route("/audit", params.AuditHandler.MountRoutes)
			}
		})
	})

	r.Route("/api/retailer", func(r chi.Router) {
		r.Use(params.Auth.Authenticate)
		r.Use(params.Auth.RequireRole(shared.RoleRetailer))
		if params.CatalogHandler != nil {
			r.Route("/catalog", params.CatalogHandler.MountRoutes)
		}
		if params.CartHandler != nil {
			r.Route("/cart", params.CartHandler.MountRoutes)
		}
		if params.OrdersHandler != nil {
			r.Route("/orders", params.OrdersHandler.MountRoutes)
		}
		if params.InboxHandler != nil {
			r.Route("/notifications", params.InboxHandler.MountRoutes)
		}
	})

	return r
}

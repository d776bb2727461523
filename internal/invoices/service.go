package invoices

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/odyssey-erp/odyssey-b2b/internal/events"
	"github.com/odyssey-erp/odyssey-b2b/internal/orders"
	"github.com/odyssey-erp/odyssey-b2b/internal/pricing"
	"github.com/odyssey-erp/odyssey-b2b/internal/retailers"
	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

// ErrOrderCancelled is returned when invoicing a cancelled order.
var ErrOrderCancelled = fmt.Errorf("%w: cannot invoice a cancelled order", shared.ErrConflict)

// Retailers loads the billed party.
type Retailers interface {
	Get(ctx context.Context, tenantID, id int64) (retailers.View, error)
}

// Deps bundles collaborators of the invoice service.
type Deps struct {
	Repo      Repository
	Retailers Retailers
	Printer   *Printer
	Renderer  Renderer
	Events    events.Publisher
	Audit     *shared.AuditLogger
	Logger    *slog.Logger
	Issuer    string
}

// Service generates and renders invoices.
type Service struct {
	Deps
	now func() time.Time
}

// NewService constructs the service.
func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Events == nil {
		d.Events = events.LogPublisher{Logger: d.Logger}
	}
	if d.Issuer == "" {
		d.Issuer = "Odyssey B2B"
	}
	return &Service{Deps: d, now: time.Now}
}

// Generate issues the invoice for an order.
func (s *Service) Generate(ctx context.Context, actor shared.Actor, in GenerateInput) (Invoice, error) {
	dueDays := DefaultDueDays
	if in.DueDays != nil {
		dueDays = *in.DueDays
	}
	if dueDays < 0 || dueDays > 365 {
		return Invoice{}, fmt.Errorf("%w: due_days must be between 0 and 365", shared.ErrValidation)
	}
	issue := s.now().UTC().Truncate(24 * time.Hour)

	var inv Invoice
	err := s.Repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		order, err := repo.LoadOrder(ctx, actor.TenantID, in.OrderID)
		if err != nil {
			return err
		}
		if order.Status == orders.StatusCancelled {
			return ErrOrderCancelled
		}
		inv = FromOrder(order, issue, dueDays)
		inv.TenantID = actor.TenantID
		inv.Number, err = repo.NextNumber(ctx, actor.TenantID, issue.Year())
		if err != nil {
			return err
		}
		return repo.Insert(ctx, &inv)
	})
	if err != nil {
		return Invoice{}, err
	}

	s.Events.Publish(ctx, events.New(events.InvoiceGenerated, actor.TenantID, map[string]any{
		"invoice_id": inv.ID, "number": inv.Number, "order_id": inv.OrderID, "total": inv.Total,
	}))
	if err := s.Audit.Record(ctx, shared.AuditLog{
		TenantID: actor.TenantID,
		ActorID:  actor.UserID,
		Action:   "invoice.generated",
		Entity:   "invoice",
		EntityID: strconv.FormatInt(inv.ID, 10),
		Meta:     map[string]any{"number": inv.Number, "order_id": inv.OrderID},
		At:       s.now(),
	}); err != nil {
		s.Logger.Warn("audit invoice", slog.Any("error", err))
	}
	return inv, nil
}

// FromOrder builds an unsaved invoice mirroring the order. Totals are
// recomputed from the lines so the pricing rules always hold on the invoice.
func FromOrder(order orders.Order, issue time.Time, dueDays int) Invoice {
	inv := Invoice{
		OrderID:    order.ID,
		RetailerID: order.RetailerID,
		IssueDate:  issue,
		DueDate:    issue.AddDate(0, 0, dueDays),
		Status:     StatusIssued,
	}
	priced := make([]pricing.Line, 0, len(order.Lines))
	for _, l := range order.Lines {
		inv.Lines = append(inv.Lines, Line{
			SKU:       l.SKU,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: pricing.LineTotal(l.Quantity, l.UnitPrice),
		})
		priced = append(priced, pricing.Line{Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	inv.Totals = pricing.ComputeLines(priced)
	return inv
}

// Get returns an invoice.
func (s *Service) Get(ctx context.Context, tenantID, id int64) (Invoice, error) {
	if id <= 0 {
		return Invoice{}, ErrNotFound
	}
	return s.Repo.Get(ctx, tenantID, id)
}

// RenderPDF renders the invoice and returns the PDF with a download name.
func (s *Service) RenderPDF(ctx context.Context, tenantID, id int64) ([]byte, string, error) {
	inv, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, "", err
	}
	retailer, err := s.Retailers.Get(ctx, tenantID, inv.RetailerID)
	if err != nil {
		return nil, "", err
	}
	html, err := s.Printer.HTML(Document{Issuer: s.Issuer, Invoice: inv, Retailer: retailer.Retailer})
	if err != nil {
		return nil, "", err
	}
	pdf, err := s.Renderer.RenderHTML(ctx, html)
	if err != nil {
		return nil, "", fmt.Errorf("render invoice pdf: %w", err)
	}
	return pdf, inv.Number + ".pdf", nil
}

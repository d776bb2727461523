package payments

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-b2b/internal/events"
	"github.com/odyssey-erp/odyssey-b2b/internal/export"
	"github.com/odyssey-erp/odyssey-b2b/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-b2b/internal/retailers"
	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

// ErrCollectorRequired is returned for cash payments without a collector.
var ErrCollectorRequired = fmt.Errorf("%w: collector_id is required for cash payments", shared.ErrValidation)

// Portfolios supplies the credit position of all retailers.
type Portfolios interface {
	Portfolio(ctx context.Context, tenantID int64) (retailers.Portfolio, error)
}

// SummaryCache stores computed summaries under versioned keys.
type SummaryCache interface {
	BuildKey(ctx context.Context, scope string, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error
	Bump(ctx context.Context, scope string) error
}

// Deps bundles collaborators of the payment service.
type Deps struct {
	Repo       Repository
	Portfolios Portfolios
	Events     events.Publisher
	Cache      SummaryCache
	Audit      *shared.AuditLogger
	Logger     *slog.Logger
}

type Service struct {
	repo       Repository
	portfolios Portfolios
	events     events.Publisher
	cache      SummaryCache
	audit      *shared.AuditLogger
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pub := d.Events
	if pub == nil {
		pub = events.LogPublisher{Logger: logger}
	}
	return &Service{
		repo:       d.Repo,
		portfolios: d.Portfolios,
		events:     pub,
		cache:      d.Cache,
		audit:      d.Audit,
		logger:     logger,
		now:        time.Now,
	}
}

// RecordPayment stores a payment, credits the retailer and settles the invoice when given.
func (s *Service) RecordPayment(ctx context.Context, actor shared.Actor, in RecordInput) (Recorded, error) {
	p := Payment{
		TenantID:    actor.TenantID,
		RetailerID:  in.RetailerID,
		InvoiceID:   in.InvoiceID,
		Amount:      shared.RoundCents(in.Amount),
		Method:      in.Method,
		CollectorID: in.CollectorID,
		Reference:   strings.TrimSpace(in.Reference),
		Notes:       strings.TrimSpace(in.Notes),
		CollectedAt: s.now().UTC(),
		RecordedBy:  actor.UserID,
	}
	if in.CollectedAt != nil {
		p.CollectedAt = in.CollectedAt.UTC()
	}
	if actor.Role == shared.RoleCollector {
		own := actor.UserID
		p.CollectorID = &own
	}
	if p.Amount <= 0 {
		return Recorded{}, fmt.Errorf("%w: amount must be at least 0.01", shared.ErrValidation)
	}
	if p.Method == MethodCash && p.CollectorID == nil {
		return Recorded{}, ErrCollectorRequired
	}

	var out Recorded
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.Insert(ctx, &p); err != nil {
			return err
		}
		balance, err := repo.ApplyBalanceDelta(ctx, actor.TenantID, p.RetailerID, p.Amount)
		if err != nil {
			return err
		}
		out = Recorded{Payment: p, RetailerBalance: balance}
		if p.InvoiceID != nil {
			inv, err := repo.ApplyInvoicePayment(ctx, actor.TenantID, *p.InvoiceID, p.RetailerID, p.Amount)
			if err != nil {
				return err
			}
			out.Invoice = &inv
		}
		return nil
	})
	if err != nil {
		return Recorded{}, err
	}

	s.events.Publish(ctx, events.New(events.PaymentRecorded, actor.TenantID, map[string]any{
		"payment_id":  p.ID,
		"retailer_id": p.RetailerID,
		"amount":      p.Amount,
		"method":      p.Method,
		"invoice_id":  p.InvoiceID,
	}))
	s.invalidate(ctx, actor.TenantID)
	s.record(ctx, actor, "payment.recorded", "payment", p.ID, map[string]any{"amount": p.Amount, "method": p.Method})
	return out, nil
}

// ReconcileCash compares counted cash with the cash payments of a collector day.
func (s *Service) ReconcileCash(ctx context.Context, actor shared.Actor, in ReconcileInput) (Reconciliation, error) {
	day, err := ParseDay(in.Date)
	if err != nil {
		return Reconciliation{}, err
	}
	if in.ActualCash == nil || *in.ActualCash < 0 {
		return Reconciliation{}, fmt.Errorf("%w: actual_cash must be zero or more", shared.ErrValidation)
	}

	var rec Reconciliation
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		expected, err := repo.ExpectedCash(ctx, actor.TenantID, in.CollectorID, day)
		if err != nil {
			return err
		}
		actual := shared.RoundCents(*in.ActualCash)
		diff, flagged := Discrepancy(expected, actual)
		rec = Reconciliation{
			TenantID:       actor.TenantID,
			CollectorID:    in.CollectorID,
			CollectionDate: day,
			ExpectedCash:   shared.RoundCents(expected),
			ActualCash:     actual,
			Discrepancy:    diff,
			HasDiscrepancy: flagged,
			Notes:          strings.TrimSpace(in.Notes),
			ReconciledBy:   actor.UserID,
		}
		return repo.InsertReconciliation(ctx, &rec)
	})
	if err != nil {
		return Reconciliation{}, err
	}

	s.events.Publish(ctx, events.New(events.CashReconciled, actor.TenantID, map[string]any{
		"reconciliation_id": rec.ID,
		"collector_id":      rec.CollectorID,
		"date":              in.Date,
		"discrepancy":       rec.Discrepancy,
		"has_discrepancy":   rec.HasDiscrepancy,
	}))
	s.invalidate(ctx, actor.TenantID)
	s.record(ctx, actor, "cash.reconciled", "cash_reconciliation", rec.ID, map[string]any{
		"collector_id": rec.CollectorID, "discrepancy": rec.Discrepancy,
	})
	return rec, nil
}

// CashCollectionReport lists collector days in the filter period with grand totals.
func (s *Service) CashCollectionReport(ctx context.Context, tenantID int64, filter CollectionFilter) (CollectionReport, error) {
	rows, err := s.repo.CollectionRows(ctx, tenantID, filter)
	if err != nil {
		return CollectionReport{}, err
	}
	if rows == nil {
		rows = []CollectionRow{}
	}
	return CollectionReport{
		From:   filter.From.Format(dateLayout),
		To:     filter.To.Format(dateLayout),
		Rows:   rows,
		Totals: SumRows(rows),
	}, nil
}

// SumRows computes the report totals on cents.
func SumRows(rows []CollectionRow) CollectionTotals {
	var (
		t                          CollectionTotals
		collected, reconciled, net int64
	)
	for _, row := range rows {
		t.PaymentCount += row.PaymentCount
		collected += shared.Cents(row.TotalCollected)
		if row.Status != RowReconciled {
			t.PendingDays++
			continue
		}
		if row.ActualCash != nil {
			reconciled += shared.Cents(*row.ActualCash)
		}
		if row.Discrepancy != nil {
			net += shared.Cents(*row.Discrepancy)
		}
	}
	t.TotalCollected = float64(collected) / 100
	t.TotalReconciled = float64(reconciled) / 100
	t.NetDiscrepancy = float64(net) / 100
	return t
}

// WriteCollectionCSV renders the report as CSV.
func WriteCollectionCSV(w io.Writer, report CollectionReport) error {
	table := export.Table{Header: []string{
		"Date", "Collector ID", "Payments", "Total Collected", "Actual Cash", "Discrepancy", "Status",
	}}
	for _, row := range report.Rows {
		actual, diff := "", ""
		if row.ActualCash != nil {
			actual = export.Money(*row.ActualCash)
		}
		if row.Discrepancy != nil {
			diff = export.Money(*row.Discrepancy)
		}
		table.Rows = append(table.Rows, []string{
			export.Date(row.Date), strconv.FormatInt(row.CollectorID, 10), strconv.Itoa(row.PaymentCount),
			export.Money(row.TotalCollected), actual, diff, row.Status,
		})
	}
	return export.WriteCSV(w, table)
}

// FinancialSummary aggregates credit, collection and invoicing figures for the period.
func (s *Service) FinancialSummary(ctx context.Context, tenantID int64, p Period) (FinancialSummary, error) {
	if s.cache == nil {
		return s.computeSummary(ctx, tenantID, p)
	}
	key, err := s.cache.BuildKey(ctx, cache.TenantScope(tenantID), "summary", p.From.Format(dateLayout), p.To.Format(dateLayout))
	if err != nil {
		s.logger.Warn("summary cache key", slog.Any("error", err))
		return s.computeSummary(ctx, tenantID, p)
	}
	var out FinancialSummary
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.computeSummary(ctx, tenantID, p)
	})
	return out, err
}

// WarmSummary precomputes the month-to-date summary.
func (s *Service) WarmSummary(ctx context.Context, tenantID int64) error {
	_, err := s.FinancialSummary(ctx, tenantID, MonthToDate(s.now()))
	return err
}

func (s *Service) computeSummary(ctx context.Context, tenantID int64, p Period) (FinancialSummary, error) {
	var (
		portfolio  retailers.Portfolio
		byMethod   map[Method]float64
		invoiced   float64
		unpaid     float64
		openCount  int
		netDiscrep float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		portfolio, err = s.portfolios.Portfolio(gctx, tenantID)
		return err
	})
	g.Go(func() (err error) {
		byMethod, err = s.repo.CollectedByMethod(gctx, tenantID, p)
		return err
	})
	g.Go(func() (err error) {
		invoiced, err = s.repo.InvoicedTotal(gctx, tenantID, p)
		return err
	})
	g.Go(func() (err error) {
		unpaid, err = s.repo.UnpaidInvoiceTotal(gctx, tenantID)
		return err
	})
	g.Go(func() (err error) {
		openCount, netDiscrep, err = s.repo.OpenDiscrepancies(gctx, tenantID, p)
		return err
	})
	if err := g.Wait(); err != nil {
		return FinancialSummary{}, fmt.Errorf("financial summary: %w", err)
	}

	var collected int64
	for _, v := range byMethod {
		collected += shared.Cents(v)
	}
	byTier := portfolio.ByTier
	if byTier == nil {
		byTier = map[retailers.Tier]int{}
	}
	return FinancialSummary{
		From:               p.From.Format(dateLayout),
		To:                 p.To.Format(dateLayout),
		TotalCreditLimit:   shared.RoundCents(portfolio.TotalCreditLimit),
		TotalOutstanding:   shared.RoundCents(portfolio.TotalOutstanding),
		Utilization:        portfolio.Utilization,
		RetailersByTier:    byTier,
		CollectedByMethod:  byMethod,
		CollectedTotal:     float64(collected) / 100,
		InvoicedTotal:      shared.RoundCents(invoiced),
		UnpaidInvoiceTotal: shared.RoundCents(unpaid),
		OpenDiscrepancies:  openCount,
		NetDiscrepancy:     shared.RoundCents(netDiscrep),
	}, nil
}

func (s *Service) invalidate(ctx context.Context, tenantID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx, cache.TenantScope(tenantID)); err != nil {
		s.logger.Warn("bump summary cache", slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action, entity string, id int64, meta map[string]any) {
	if err := s.audit.Record(ctx, shared.AuditLog{
		TenantID: actor.TenantID,
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit payment", slog.String("action", action), slog.Any("error", err))
	}
}

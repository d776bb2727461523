package orders

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-b2b/internal/cart"
	"github.com/odyssey-erp/odyssey-b2b/internal/catalog"
	"github.com/odyssey-erp/odyssey-b2b/internal/events"
	"github.com/odyssey-erp/odyssey-b2b/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-b2b/internal/pricing"
	"github.com/odyssey-erp/odyssey-b2b/internal/retailers"
	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

var (
	// ErrEmptyCart is returned when checking out without items.
	ErrEmptyCart = fmt.Errorf("%w: cart is empty", shared.ErrValidation)
	// ErrCreditLimitExceeded is returned when a credit order does not fit the available credit.
	ErrCreditLimitExceeded = fmt.Errorf("%w: credit limit exceeded", shared.ErrConflict)
	// ErrRetailerInactive is returned for suspended or inactive retailers.
	ErrRetailerInactive = fmt.Errorf("%w: retailer account is not active", shared.ErrForbidden)
)

const idempotencyModule = "orders.create"

// Carts is the part of the cart service checkout needs.
type Carts interface {
	Items(ctx context.Context, tenantID, retailerID int64) ([]cart.Item, error)
	Clear(ctx context.Context, tenantID, retailerID int64) error
}

// Idempotency guards replayed checkout requests.
type Idempotency interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Invalidator drops cached aggregates for a scope.
type Invalidator interface {
	Bump(ctx context.Context, scope string) error
}

// Deps bundles collaborators of the order service.
type Deps struct {
	Repo        Repository
	Carts       Carts
	Idempotency Idempotency
	Events      events.Publisher
	Cache       Invalidator
	Audit       *shared.AuditLogger
	Logger      *slog.Logger
}

type Service struct {
	repo   Repository
	carts  Carts
	idem   Idempotency
	events events.Publisher
	cache  Invalidator
	audit  *shared.AuditLogger
	logger *slog.Logger
	now    func() time.Time
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
		repo:   d.Repo,
		carts:  d.Carts,
		idem:   d.Idempotency,
		events: pub,
		cache:  d.Cache,
		audit:  d.Audit,
		logger: logger,
		now:    time.Now,
	}
}

// Create converts the retailer's cart into an order.
func (s *Service) Create(ctx context.Context, actor shared.Actor, in CreateInput, idempotencyKey string) (Placed, error) {
	if actor.RetailerID <= 0 {
		return Placed{}, fmt.Errorf("%w: retailer account required", shared.ErrForbidden)
	}
	switch in.PaymentMethod {
	case PaymentCredit, PaymentCashOnDelivery:
	default:
		return Placed{}, fmt.Errorf("%w: payment_method must be one of [credit cash_on_delivery]", shared.ErrValidation)
	}

	key := strings.TrimSpace(idempotencyKey)
	if key != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, scopedKey(actor, key), idempotencyModule); err != nil {
			return Placed{}, err
		}
	}
	placed, err := s.place(ctx, actor, in)
	if err != nil {
		if key != "" && s.idem != nil {
			if derr := s.idem.Delete(ctx, scopedKey(actor, key), idempotencyModule); derr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", derr))
			}
		}
		return Placed{}, err
	}

	if err := s.carts.Clear(ctx, actor.TenantID, actor.RetailerID); err != nil {
		s.logger.Error("clear cart after order", slog.Int64("order_id", placed.Order.ID), slog.Any("error", err))
	}
	s.events.Publish(ctx, events.New(events.OrderCreated, actor.TenantID, map[string]any{
		"order_id":       placed.Order.ID,
		"number":         placed.Order.Number,
		"retailer_id":    placed.Order.RetailerID,
		"total":          placed.Order.Total,
		"payment_method": placed.Order.PaymentMethod,
	}))
	if s.cache != nil {
		if err := s.cache.Bump(ctx, cache.TenantScope(actor.TenantID)); err != nil {
			s.logger.Warn("bump summary cache", slog.Any("error", err))
		}
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		TenantID: actor.TenantID,
		ActorID:  actor.UserID,
		Action:   "order.created",
		Entity:   "order",
		EntityID: strconv.FormatInt(placed.Order.ID, 10),
		Meta:     map[string]any{"number": placed.Order.Number, "total": placed.Order.Total},
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit order", slog.Any("error", err))
	}
	return placed, nil
}

func (s *Service) place(ctx context.Context, actor shared.Actor, in CreateInput) (Placed, error) {
	items, err := s.carts.Items(ctx, actor.TenantID, actor.RetailerID)
	if err != nil {
		return Placed{}, err
	}
	if len(items) == 0 {
		return Placed{}, ErrEmptyCart
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}

	var placed Placed
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		retailer, err := repo.LockRetailer(ctx, actor.TenantID, actor.RetailerID)
		if err != nil {
			return err
		}
		if retailer.Status != retailers.StatusActive {
			return ErrRetailerInactive
		}
		products, err := repo.LockProducts(ctx, actor.TenantID, ids)
		if err != nil {
			return err
		}

		order := Order{
			TenantID:      actor.TenantID,
			Number:        NewNumber(s.now()),
			RetailerID:    retailer.ID,
			Status:        StatusPending,
			PaymentMethod: in.PaymentMethod,
			Notes:         strings.TrimSpace(in.Notes),
		}
		priced := make([]pricing.Line, 0, len(items))
		for _, item := range items {
			p, ok := products[item.ProductID]
			if !ok || !p.IsActive {
				return fmt.Errorf("%w: product %q is no longer available", shared.ErrConflict, item.Name)
			}
			if p.Stock < item.Quantity {
				return fmt.Errorf("%w: %s", catalog.ErrInsufficientStock, p.SKU)
			}
			order.Lines = append(order.Lines, Line{
				ProductID: p.ID,
				SKU:       p.SKU,
				Name:      p.Name,
				Quantity:  item.Quantity,
				UnitPrice: p.UnitPrice,
				LineTotal: pricing.LineTotal(item.Quantity, p.UnitPrice),
			})
			priced = append(priced, pricing.Line{Quantity: item.Quantity, UnitPrice: p.UnitPrice})
		}
		order.Totals = pricing.ComputeLines(priced)

		balance := retailer.Balance
		if order.PaymentMethod == PaymentCredit {
			credit := retailers.CreditOf(retailer.Balance, retailer.CreditLimit)
			if shared.Cents(credit.Available) < shared.Cents(order.Total) {
				return ErrCreditLimitExceeded
			}
		}
		for _, l := range order.Lines {
			if err := repo.DecrementStock(ctx, actor.TenantID, l.ProductID, l.Quantity); err != nil {
				return err
			}
		}
		if order.PaymentMethod == PaymentCredit {
			balance, err = repo.ApplyBalanceDelta(ctx, actor.TenantID, retailer.ID, -order.Total)
			if err != nil {
				return err
			}
		}
		if err := repo.Insert(ctx, &order); err != nil {
			return err
		}
		placed = Placed{Order: order, RetailerBalance: balance}
		return nil
	})
	if err != nil {
		return Placed{}, err
	}
	return placed, nil
}

// ListResult is one page of order history.
type ListResult struct {
	Orders     []Order           `json:"orders"`
	Pagination shared.Pagination `json:"pagination"`
}

// List returns the retailer's orders, newest first.
func (s *Service) List(ctx context.Context, actor shared.Actor, page, limit int) (ListResult, error) {
	if limit <= 0 || limit > shared.MaxPerPage {
		limit = shared.DefaultPerPage
	}
	rows, total, err := s.repo.ListByRetailer(ctx, actor.TenantID, actor.RetailerID, page, limit)
	if err != nil {
		return ListResult{}, err
	}
	if rows == nil {
		rows = []Order{}
	}
	return ListResult{Orders: rows, Pagination: shared.NewPagination(page, limit, total)}, nil
}

// Get returns one of the retailer's orders.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id int64) (Order, error) {
	o, err := s.repo.Get(ctx, actor.TenantID, id)
	if err != nil {
		return Order{}, err
	}
	if actor.Role == shared.RoleRetailer && o.RetailerID != actor.RetailerID {
		return Order{}, ErrNotFound
	}
	return o, nil
}

// NewNumber returns an order number of the form ORD-YYYYMMDD-XXXXXX.
func NewNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return "ORD-" + at.UTC().Format("20060102") + "-" + suffix
}

func scopedKey(actor shared.Actor, key string) string {
	return strconv.FormatInt(actor.TenantID, 10) + ":" + strconv.FormatInt(actor.RetailerID, 10) + ":" + key
}


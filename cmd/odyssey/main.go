package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/odyssey-b2b/internal/app"
	"github.com/odyssey-erp/odyssey-b2b/internal/audit"
	"github.com/odyssey-erp/odyssey-b2b/internal/auth"
	"github.com/odyssey-erp/odyssey-b2b/internal/cart"
	"github.com/odyssey-erp/odyssey-b2b/internal/catalog"
	"github.com/odyssey-erp/odyssey-b2b/internal/communications"
	"github.com/odyssey-erp/odyssey-b2b/internal/events"
	"github.com/odyssey-erp/odyssey-b2b/internal/invoices"
	"github.com/odyssey-erp/odyssey-b2b/internal/observability"
	"github.com/odyssey-erp/odyssey-b2b/internal/orders"
	"github.com/odyssey-erp/odyssey-b2b/internal/payments"
	"github.com/odyssey-erp/odyssey-b2b/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-b2b/internal/platform/db"
	"github.com/odyssey-erp/odyssey-b2b/internal/retailers"
	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
	"github.com/odyssey-erp/odyssey-b2b/internal/suppliers"
	"github.com/odyssey-erp/odyssey-b2b/jobs"
	"github.com/odyssey-erp/odyssey-b2b/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if cfg.DBAutoMigrate {
		if err := db.Migrate(ctx, dbpool); err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		}
	}

	redisClient, err := cache.New(ctx, cfg.Redis("b2b-api"))
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	summaryCache := cache.NewVersioned(redisClient, "b2b", cfg.SummaryCacheTTL)

	var publisher events.Publisher = events.LogPublisher{Logger: logger}
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := events.Dial(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		if err != nil {
			logger.Error("connect kafka", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := kafka.Close(); err != nil {
				logger.Warn("kafka close", slog.Any("error", err))
			}
		}()
		publisher = kafka
	}

	redisOpts := cfg.Redis("b2b-api").Queue()
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	authMiddleware := auth.Middleware{Tokens: auth.NewTokens(cfg.JWTSecret, cfg.JWTIssuer), Logger: logger}

	retailerService := retailers.NewService(retailers.NewRepository(dbpool))
	supplierService := suppliers.NewService(suppliers.NewRepository(dbpool), auditLogger, logger)
	catalogService := catalog.NewService(catalog.NewRepository(dbpool))
	cartService := cart.NewService(cart.NewRedisStore(redisClient, cfg.CartTTL), catalogService)

	orderService := orders.NewService(orders.Deps{
		Repo:        orders.NewRepository(dbpool, dbpool),
		Carts:       cartService,
		Idempotency: idempotencyStore,
		Events:      publisher,
		Cache:       summaryCache,
		Audit:       auditLogger,
		Logger:      logger,
	})

	paymentService := payments.NewService(payments.Deps{
		Repo:       payments.NewRepository(dbpool, dbpool),
		Portfolios: retailerService,
		Events:     publisher,
		Cache:      summaryCache,
		Audit:      auditLogger,
		Logger:     logger,
	})

	reportClient := report.NewClient(cfg.GotenbergURL)
	printer, err := invoices.NewPrinter(language.English)
	if err != nil {
		logger.Error("init invoice printer", slog.Any("error", err))
		os.Exit(1)
	}
	invoiceService := invoices.NewService(invoices.Deps{
		Repo:      invoices.NewRepository(dbpool, dbpool),
		Retailers: retailerService,
		Printer:   printer,
		Renderer:  reportClient,
		Events:    publisher,
		Audit:     auditLogger,
		Logger:    logger,
	})

	communicationService := communications.NewService(communications.Deps{
		Repo:      communications.NewRepository(dbpool, dbpool),
		Retailers: retailerService,
		Queue:     jobClient,
		Events:    publisher,
		Audit:     auditLogger,
		Logger:    logger,
	})

	params := app.RouterParams{
		Logger:  logger,
		Config:  cfg,
		Auth:    authMiddleware,
		Metrics: observability.NewMetrics(),

		RetailersHandler:      retailers.NewHandler(logger, retailerService),
		SuppliersHandler:      suppliers.NewHandler(logger, supplierService),
		InvoicesHandler:       invoices.NewHandler(logger, invoiceService),
		CommunicationsHandler: communications.NewHandler(logger, communicationService),
		AuditHandler:          audit.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool))),

		CatalogHandler: catalog.NewHandler(logger, catalogService),
		CartHandler:    cart.NewHandler(logger, cartService),
		OrdersHandler:  orders.NewHandler(logger, orderService),
		InboxHandler:   communications.NewInboxHandler(logger, communicationService),

		ReportHandler: report.NewHandler(reportClient, logger),
		JobHandler:    jobs.NewHandler(inspector, logger),
	}
	params.PaymentsHandler = payments.NewHandler(logger, paymentService, params.AdminOnly())
	router := app.NewRouter(params)

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

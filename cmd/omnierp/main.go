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

	"github.com/go-chi/chi/v5"

	"github.com/C-W-Wong/omni-erp-sub000/internal/accounting"
	"github.com/C-W-Wong/omni-erp-sub000/internal/ap"
	"github.com/C-W-Wong/omni-erp-sub000/internal/app"
	"github.com/C-W-Wong/omni-erp-sub000/internal/ar"
	"github.com/C-W-Wong/omni-erp-sub000/internal/auth"
	"github.com/C-W-Wong/omni-erp-sub000/internal/batch"
	"github.com/C-W-Wong/omni-erp-sub000/internal/inventory"
	"github.com/C-W-Wong/omni-erp-sub000/internal/masterdata/costtypes"
	"github.com/C-W-Wong/omni-erp-sub000/internal/masterdata/customers"
	"github.com/C-W-Wong/omni-erp-sub000/internal/masterdata/products"
	"github.com/C-W-Wong/omni-erp-sub000/internal/masterdata/suppliers"
	"github.com/C-W-Wong/omni-erp-sub000/internal/masterdata/warehouses"
	"github.com/C-W-Wong/omni-erp-sub000/internal/platform/cache"
	"github.com/C-W-Wong/omni-erp-sub000/internal/platform/db"
	"github.com/C-W-Wong/omni-erp-sub000/internal/procurement"
	"github.com/C-W-Wong/omni-erp-sub000/internal/sales"
	"github.com/C-W-Wong/omni-erp-sub000/internal/shared"
	"github.com/C-W-Wong/omni-erp-sub000/internal/transfer"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessions := shared.NewSessionManager(redisClient, "omnierp_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrf := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(pool)

	authService := auth.NewService(auth.NewRepository(pool))
	authHandler := auth.NewHandler(logger, authService, sessions, csrf)

	productsHandler := products.NewHandler(logger, products.NewService(products.NewRepository(pool)))
	customersHandler := customers.NewHandler(logger, customers.NewService(customers.NewRepository(pool)))
	suppliersHandler := suppliers.NewHandler(logger, suppliers.NewService(suppliers.NewRepository(pool)))
	warehousesHandler := warehouses.NewHandler(logger, warehouses.NewService(warehouses.NewRepository(pool)))
	costTypesHandler := costtypes.NewHandler(logger, costtypes.NewService(costtypes.NewRepository(pool)))

	batchHandler := batch.NewHandler(logger, batch.NewService(batch.NewRepository(pool), auditLogger))
	inventoryHandler := inventory.NewHandler(logger, inventory.NewService(inventory.NewRepository(pool)))
	transferHandler := transfer.NewHandler(logger, transfer.NewService(transfer.NewRepository(pool), auditLogger, cfg.AllowNegativeStock))
	procurementHandler := procurement.NewHandler(logger, procurement.NewService(procurement.NewRepository(pool), auditLogger))
	salesHandler := sales.NewHandler(logger, sales.NewService(sales.NewRepository(pool), auditLogger))
	accountingHandler := accounting.NewHandler(logger, accounting.NewService(accounting.NewRepository(pool), auditLogger))
	arHandler := ar.NewHandler(logger, ar.NewService(ar.NewRepository(pool), auditLogger))
	apHandler := ap.NewHandler(logger, ap.NewService(ap.NewRepository(pool), auditLogger))

	router := chi.NewRouter()
	for _, mw := range app.MiddlewareStack(app.MiddlewareConfig{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessions,
		CSRFManager:    csrf,
	}) {
		router.Use(mw)
	}

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Route("/api/auth", authHandler.MountRoutes)
	router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth)
		productsHandler.MountRoutes(r)
		customersHandler.MountRoutes(r)
		suppliersHandler.MountRoutes(r)
		warehousesHandler.MountRoutes(r)
		costTypesHandler.MountRoutes(r)
		batchHandler.MountRoutes(r)
		inventoryHandler.MountRoutes(r)
		transferHandler.MountRoutes(r)
		procurementHandler.MountRoutes(r)
		salesHandler.MountRoutes(r)
		accountingHandler.MountRoutes(r)
		arHandler.MountRoutes(r)
		apHandler.MountRoutes(r)
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}
}

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
	"golang.org/x/sync/errgroup"

	"github.com/karibu-erp/karibu-erp/internal/app"
	"github.com/karibu-erp/karibu-erp/internal/draft"
	"github.com/karibu-erp/karibu-erp/internal/inventory"
	"github.com/karibu-erp/karibu-erp/internal/platform/cache"
	"github.com/karibu-erp/karibu-erp/internal/platform/db"
	"github.com/karibu-erp/karibu-erp/internal/purchase"
	"github.com/karibu-erp/karibu-erp/internal/shared"
	"github.com/karibu-erp/karibu-erp/internal/supplier"
	"github.com/karibu-erp/karibu-erp/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	inventoryRepo := inventory.NewRepository(dbpool)
	inventoryService := inventory.NewService(logger, inventoryRepo)

	supplierRepo := supplier.NewRepository(dbpool)
	supplierService := supplier.NewService(supplierRepo)
	supplierHandler := supplier.NewHandler(logger, supplierService)

	purchaseRepo := purchase.NewRepository(dbpool)
	purchaseService := purchase.NewService(purchaseRepo, inventoryService, supplierService, auditLogger, idempotencyStore, purchase.ServiceConfig{
		BaseCurrency: cfg.BaseCurrency,
		SkipSentStep: cfg.SkipSentStep,
	})
	purchaseHandler := purchase.NewHandler(logger, purchaseService)

	draftRepo := draft.NewRepository(dbpool)
	draftStore := draft.NewStore(logger, draftRepo, redisClient, cfg.AutosaveTTL)
	draftHandler := draft.NewHandler(logger, draftStore)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Pool:            dbpool,
		PurchaseHandler: purchaseHandler,
		DraftHandler:    draftHandler,
		SupplierHandler: supplierHandler,
		JobsHandler:     jobs.NewHandler(inspector, jobClient, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}

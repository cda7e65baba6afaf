package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/smartwallet/smartwallet/internal/config"
	"github.com/smartwallet/smartwallet/internal/funding"
	"github.com/smartwallet/smartwallet/internal/ledger"
	"github.com/smartwallet/smartwallet/internal/logging"
	"github.com/smartwallet/smartwallet/internal/notification"
	"github.com/smartwallet/smartwallet/internal/payments"
	"github.com/smartwallet/smartwallet/internal/reconcile"
	"github.com/smartwallet/smartwallet/internal/routes"
	"github.com/smartwallet/smartwallet/internal/server"
	"github.com/smartwallet/smartwallet/internal/store"
	"github.com/smartwallet/smartwallet/internal/validation"
	"github.com/smartwallet/smartwallet/internal/walletstate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	var (
		primary    store.Store
		db         *pgxpool.Pool
		cache      *redis.Client
		ownsCache  bool
		connectErr error
	)
	switch cfg.StoreBackend {
	case config.BackendRedis:
		if cache, connectErr = store.NewRedisClient(ctx, cfg.RedisURL); connectErr == nil {
			primary = store.NewRedisStore(cache, "")
		}
	case config.BackendPostgres:
		if db, connectErr = store.NewPostgresPool(ctx, cfg.DatabaseURL); connectErr == nil {
			primary = store.NewPostgresStore(db)
		}
	}
	if connectErr != nil {
		if !errors.Is(connectErr, store.ErrStorageUnavailable) {
			logger.Error("configure storage", "backend", cfg.StoreBackend, "error", connectErr)
			os.Exit(1)
		}
		logger.Warn("durable storage unreachable, using in-memory store for this session",
			"backend", cfg.StoreBackend, "error", connectErr)
	}

	st, err := store.OpenWithFallback(ctx, primary, logger)
	if err != nil {
		logger.Error("open store", "error", err)
		os.Exit(1)
	}
	if primary != nil && st != primary {
		// The primary was closed by the fallback along with its client.
		db, cache = nil, nil
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("close store", "error", err)
		}
	}()

	if cache == nil && cfg.RedisURL != "" {
		c, err := store.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, idempotency and rate limiting disabled", "error", err)
		} else {
			cache, ownsCache = c, true
		}
	}
	if ownsCache {
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	}

	bus := notification.NewBus(logger)
	bus.Subscribe(notification.LogListener(logger))

	clk := clockwork.NewRealClock()
	var seed *ledger.Seed
	if !cfg.SeedBalance.Equal(ledger.DefaultSeedBalance) {
		s := ledger.DefaultSeed(clk.Now().UTC())
		s.Balance = cfg.SeedBalance
		seed = &s
	}
	ledgerSvc := ledger.NewService(st, bus, ledger.Options{
		Currency:           cfg.Currency,
		Seed:               seed,
		EnforceNonNegative: cfg.EnforceNonNegative,
		Clock:              clk,
		Logger:             logger,
	})

	provider := walletstate.New(ledgerSvc, logger)
	if err := provider.Start(ctx); err != nil {
		logger.Error("wallet state unavailable", "error", err)
	}
	defer provider.Close()

	validate := validation.New()
	fundingSvc := funding.NewService(ledgerSvc, nil, funding.Options{
		Clock:           clk,
		SettlementDelay: cfg.SettlementDelay,
		Validator:       validate,
		Logger:          logger,
	})
	paymentSvc := payments.NewService(ledgerSvc, validate, logger)

	sched, err := reconcile.New(ledgerSvc, cfg.ReconcileSchedule, logger)
	if err != nil {
		logger.Error("configure reconciliation", "error", err)
		os.Exit(1)
	}
	sched.Start()

	srv := server.New(routes.Deps{
		Cfg:        cfg,
		Ledger:     ledgerSvc,
		Provider:   provider,
		Funding:    fundingSvc,
		Payments:   paymentSvc,
		Reconciler: sched,
		DB:         db,
		Cache:      cache,
		Logger:     logger,
	})

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		sched.Stop()
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	sched.Stop()
	if err := fundingSvc.Drain(shutdownCtx); err != nil {
		logger.Warn("pending top-ups left unsettled", "error", err)
	}

	logger.Info("server exited cleanly")
}

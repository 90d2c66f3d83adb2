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

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/ronda-hq/ronda/internal/app"
	"github.com/ronda-hq/ronda/internal/catalog"
	"github.com/ronda-hq/ronda/internal/clients"
	"github.com/ronda-hq/ronda/internal/closure"
	"github.com/ronda-hq/ronda/internal/credit"
	"github.com/ronda-hq/ronda/internal/liquidation"
	"github.com/ronda-hq/ronda/internal/observability"
	"github.com/ronda-hq/ronda/internal/orders"
	"github.com/ronda-hq/ronda/internal/payments"
	"github.com/ronda-hq/ronda/internal/platform/cache"
	"github.com/ronda-hq/ronda/internal/platform/db"
	"github.com/ronda-hq/ronda/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, credit cache disabled", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	runner := db.NewRunner(pool)
	metrics := observability.NewMetrics()
	validate := validator.New()

	orderRepo := orders.NewRepository()
	clientRepo := clients.NewRepository()
	catalogRepo := catalog.NewRepository()
	paymentRepo := payments.NewRepository()
	seizureRepo := liquidation.NewRepository()
	creditRepo := credit.NewRepository()

	var creditCache *credit.Cache
	if redisClient != nil {
		creditCache = credit.NewCache(redisClient, cfg.CreditCacheTTL)
	}
	policy := credit.DefaultPolicy()
	if cfg.CreditEligibilityFloor > 0 {
		policy.EligibilityFloor = cfg.CreditEligibilityFloor
	}
	if cfg.CreditLockoutWindow > 0 {
		policy.LockoutWindow = cfg.CreditLockoutWindow
	}
	scorer := credit.NewScorer(creditRepo, pool, creditCache, policy, logger)

	orderService := orders.NewService(orderRepo, clientRepo, runner, pool, logger)
	closeEngine := closure.NewEngine(orderRepo, clientRepo, catalogRepo, paymentRepo, runner, pool, logger)
	closeEngine.WithGraceWindow(cfg.GraceWindow)
	liqEngine := liquidation.NewEngine(orderRepo, clientRepo, catalogRepo, seizureRepo, creditRepo, scorer, runner, pool, logger)
	watcher := payments.NewWatcher(orderRepo, clientRepo, runner, pool, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Config:             cfg,
		OrdersHandler:      orders.NewHandler(logger, orderService, validate),
		ClosureHandler:     closure.NewHandler(logger, closeEngine),
		LiquidationHandler: liquidation.NewHandler(logger, liqEngine),
		PaymentsHandler:    payments.NewHandler(logger, watcher),
		CreditHandler:      credit.NewHandler(logger, scorer),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
		Logger:             logger,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

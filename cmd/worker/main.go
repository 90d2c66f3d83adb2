package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/ronda-hq/ronda/internal/app"
	"github.com/ronda-hq/ronda/internal/catalog"
	"github.com/ronda-hq/ronda/internal/clients"
	"github.com/ronda-hq/ronda/internal/closure"
	"github.com/ronda-hq/ronda/internal/credit"
	jobmetrics "github.com/ronda-hq/ronda/internal/jobs"
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
		slog.Default().Info("test mode detected, skipping worker startup")
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
	runMetrics := jobmetrics.NewMetrics(metrics.Registerer())

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
	scorer := credit.NewScorer(creditRepo, pool, creditCache, credit.DefaultPolicy(), logger)

	closeEngine := closure.NewEngine(orderRepo, clientRepo, catalogRepo, paymentRepo, runner, pool, logger)
	closeEngine.WithGraceWindow(cfg.GraceWindow)
	liqEngine := liquidation.NewEngine(orderRepo, clientRepo, catalogRepo, seizureRepo, creditRepo, scorer, runner, pool, logger)

	closeJob := closure.NewSweepJob(closeEngine, runMetrics, metrics, logger)
	liqJob := liquidation.NewSweepJob(liqEngine, runMetrics, metrics, logger)

	closeTask, err := jobs.NewCloseDueTask()
	if err != nil {
		logger.Error("build close-due task", slog.Any("error", err))
		os.Exit(1)
	}
	liquidateTask, err := jobs.NewLiquidateOverdueTask()
	if err != nil {
		logger.Error("build liquidate-overdue task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskOrdersCloseDue, Handler: closeJob.Handle},
			{Type: jobs.TaskOrdersLiquidateOverdue, Handler: liqJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.CloseSweepCron, Task: closeTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.LiquidationSweepCron, Task: liquidateTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

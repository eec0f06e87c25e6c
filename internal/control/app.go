// Package control assembles and runs the commander service: storage, queue,
// gateways, orchestrator, background workers and the HTTP surface.
package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ordersvc/commander/internal/api"
	"github.com/ordersvc/commander/internal/commander"
	"github.com/ordersvc/commander/internal/core/config"
	"github.com/ordersvc/commander/internal/infra/gateway"
	redisclient "github.com/ordersvc/commander/internal/infra/redis"
	"github.com/ordersvc/commander/internal/infra/storage"
	"github.com/ordersvc/commander/internal/infra/storage/memory"
	"github.com/ordersvc/commander/internal/infra/storage/postgres"
	"github.com/ordersvc/commander/internal/reconcile"
	"github.com/ordersvc/commander/internal/service"
)

// App is the assembled commander service.
type App struct {
	cfg         config.AppConfig
	cmd         *commander.Commander
	server      *api.Server
	sweeper     *reconcile.Sweeper
	drainer     *reconcile.Drainer
	db          *postgres.DB
	redisClient *redisclient.Client
	log         *slog.Logger

	cancelWorkers context.CancelFunc
}

// NewApp wires all dependencies. Postgres and Redis are used when configured;
// otherwise the in-memory implementations serve, which is what local runs and
// tests use.
func NewApp(cfg config.AppConfig) (*App, error) {
	log := slog.Default()

	// 1. Storage
	var records storage.OperationRecordRepository
	var sagaLog storage.SagaLogRepository
	var db *postgres.DB

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		records = postgres.NewRecordRepo(db)
		sagaLog = postgres.NewSagaLogRepo(db)
		log.Info("Using PostgreSQL storage")
	} else {
		records = memory.NewRecordStore()
		sagaLog = memory.NewSagaLog()
		log.Info("Using Memory storage")
	}

	// 2. Fallback queue
	var queue service.FallbackQueue
	var redisClient *redisclient.Client
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		queue = redisclient.NewFallbackQueue(redisClient)
		log.Info("Using Redis fallback queue")
	} else {
		queue = memory.NewFallbackQueue()
		log.Info("Using Memory fallback queue")
	}

	// 3. Gateways and service adapters
	payment := service.NewPayment(gateway.NewPaymentClient(cfg.Gateways.Payment), records, log)
	shipping := service.NewShipping(gateway.NewShippingClient(cfg.Gateways.Shipping), records, log)
	messaging := service.NewMessaging(gateway.NewMessagingClient(cfg.Gateways.Messaging), records, log)

	// 4. Orchestrator
	cmd := commander.New(cfg.Saga, commander.Deps{
		Payment:   payment,
		Shipping:  shipping,
		Messaging: messaging,
		Fallback:  queue,
		SagaLog:   sagaLog,
		Records:   records,
		Log:       log,
	})

	// 5. Background workers and HTTP surface
	sweeper := reconcile.NewSweeper(cfg.Reconcile, records, log)
	drainer := reconcile.NewDrainer(cfg.Reconcile, cfg.Saga.Retry, queue, messaging, log)
	server := api.NewServer(cfg.Server, api.NewHandler(cmd, sagaLog, log), log)

	return &App{
		cfg:         cfg,
		cmd:         cmd,
		server:      server,
		sweeper:     sweeper,
		drainer:     drainer,
		db:          db,
		redisClient: redisClient,
		log:         log,
	}, nil
}

// Commander exposes the orchestrator, used by the operator CLI.
func (a *App) Commander() *commander.Commander { return a.cmd }

// Sweeper exposes the record sweeper, used by the operator CLI.
func (a *App) Sweeper() *reconcile.Sweeper { return a.sweeper }

// Drainer exposes the fallback queue drainer, used by the operator CLI.
func (a *App) Drainer() *reconcile.Drainer { return a.drainer }

// Close releases the app's connections without starting it. The operator CLI
// uses this for one-shot commands.
func (a *App) Close() {
	if a.redisClient != nil {
		_ = a.redisClient.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

// Start resumes interrupted sagas, then launches the background workers and
// the HTTP server.
func (a *App) Start(ctx context.Context) error {
	if err := a.cmd.ResumeAll(ctx); err != nil {
		// Unresolved orders stay in the log; the operator CLI can retry them.
		a.log.Error("Failed to resume some in-flight orders", "error", err)
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	a.cancelWorkers = cancel

	go func() {
		if err := a.sweeper.Run(workerCtx); err != nil && workerCtx.Err() == nil {
			a.log.Error("Sweeper failed", "error", err)
		}
	}()
	go func() {
		if err := a.drainer.Run(workerCtx); err != nil && workerCtx.Err() == nil {
			a.log.Error("Drainer failed", "error", err)
		}
	}()
	go func() {
		if err := a.server.Start(); err != nil {
			a.log.Error("HTTP server failed", "error", err)
		}
	}()

	return nil
}

// Stop shuts the app down gracefully.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping commander...")

	if a.cancelWorkers != nil {
		a.cancelWorkers()
	}

	err := a.server.Stop(ctx)

	if a.redisClient != nil {
		if cerr := a.redisClient.Close(); cerr != nil {
			a.log.Warn("Failed to close Redis", "error", cerr)
		}
	}
	if a.db != nil {
		if cerr := a.db.Close(); cerr != nil {
			a.log.Warn("Failed to close database", "error", cerr)
		}
	}
	return err
}

// Copyright 2025 James Ross
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/videoforge/engine/internal/breaker"
	"github.com/videoforge/engine/internal/broker"
	"github.com/videoforge/engine/internal/clients"
	"github.com/videoforge/engine/internal/config"
	"github.com/videoforge/engine/internal/controlapi"
	"github.com/videoforge/engine/internal/executor"
	"github.com/videoforge/engine/internal/obs"
	"github.com/videoforge/engine/internal/redisclient"
	"github.com/videoforge/engine/internal/scheduler"
	"github.com/videoforge/engine/internal/store"
	"github.com/videoforge/engine/internal/workerrt"
)

var version = "dev"

func main() {
	var role string
	var configPath string
	var apiAddr string
	var showVersion bool
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.StringVar(&role, "role", "all", "Role to run: worker|scheduler|api|all")
	fs.StringVar(&configPath, "config", "config/config.yaml", "Path to YAML config")
	fs.StringVar(&apiAddr, "api-addr", ":8081", "Control API listen address")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	_ = fs.Parse(os.Args[1:])

	if showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := obs.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	tp, err := obs.MaybeInitTracing(cfg)
	if err != nil {
		logger.Warn("tracing init failed", obs.Err(err))
	}
	if tp != nil {
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	rdb := redisclient.New(cfg)
	defer rdb.Close()

	db, err := store.Open(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to open database", obs.Err(err))
	}
	defer db.Close()

	if err := store.Migrate(context.Background(), db.DB); err != nil {
		logger.Fatal("failed to apply migrations", obs.Err(err))
	}

	jobs := store.NewJobRepository(db)
	execs := store.NewExecutionRepository(db)
	catalog := store.NewCatalogRepository(db)

	br := broker.New(cfg, rdb, logger)

	readyCheck := func(c context.Context) error {
		if err := db.Ping(c); err != nil {
			return err
		}
		return rdb.Ping(c).Err()
	}
	httpSrv := obs.StartHTTPServer(cfg, readyCheck)
	defer func() { _ = httpSrv.Shutdown(context.Background()) }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	obs.StartQueueLengthUpdater(ctx, cfg, rdb, logger)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("signal received, shutting down", obs.String("signal", sig.String()))
		cancel()
		select {
		case sig2 := <-sigCh:
			logger.Warn("second signal received, exiting immediately", obs.String("signal", sig2.String()))
			os.Exit(1)
		case <-time.After(5 * time.Second):
		}
	}()

	switch role {
	case "worker":
		runWorker(ctx, cfg, rdb, db, br, jobs, execs, catalog, logger)
	case "scheduler":
		runScheduler(ctx, cfg, execs, logger)
	case "api":
		runAPI(ctx, cfg, jobs, execs, br, db, rdb, logger, apiAddr)
	case "all":
		go runScheduler(ctx, cfg, execs, logger)
		go runAPI(ctx, cfg, jobs, execs, br, db, rdb, logger, apiAddr)
		runWorker(ctx, cfg, rdb, db, br, jobs, execs, catalog, logger)
	default:
		logger.Fatal("unknown role", obs.String("role", role))
	}
}

func runWorker(ctx context.Context, cfg *config.Config, rdb *redis.Client, db *store.Store, br *broker.Broker, jobs *store.JobRepository, execs *store.ExecutionRepository, catalog *store.CatalogRepository, logger *zap.Logger) {
	newBreaker := func() *breaker.CircuitBreaker {
		return breaker.New(cfg.CircuitBreaker.Window, cfg.CircuitBreaker.CooldownPeriod, cfg.CircuitBreaker.FailureThreshold, cfg.CircuitBreaker.MinSamples)
	}

	storageSvc, err := clients.NewFileStorageService(&cfg.ObjectStore, logger)
	if err != nil {
		logger.Fatal("failed to init storage client", obs.Err(err))
	}

	svcs := executor.Services{
		TTS:          clients.NewTTSService(&cfg.Services, newBreaker(), logger),
		Image:        clients.NewImageGenerationService(&cfg.Services, newBreaker(), logger),
		DigitalHuman: clients.NewDigitalHumanService(&cfg.Services, newBreaker(), logger),
		Storage:      storageSvc,
	}

	exec := executor.New(cfg, execs, jobs, catalog, svcs, logger)
	rt := workerrt.New(cfg, br, exec, db, rdb, logger)
	if err := rt.Run(ctx); err != nil {
		logger.Fatal("worker runtime exited", obs.Err(err))
	}
}

func runScheduler(ctx context.Context, cfg *config.Config, execs *store.ExecutionRepository, logger *zap.Logger) {
	sched := scheduler.New(cfg, execs, logger)
	if err := sched.Start(ctx); err != nil {
		logger.Fatal("scheduler failed to start", obs.Err(err))
	}
	<-ctx.Done()
	sched.Stop()
}

func runAPI(ctx context.Context, cfg *config.Config, jobs *store.JobRepository, execs *store.ExecutionRepository, br *broker.Broker, db *store.Store, rdb *redis.Client, logger *zap.Logger, addr string) {
	ready := readyFunc(func(c context.Context) error {
		if err := db.Ping(c); err != nil {
			return err
		}
		return rdb.Ping(c).Err()
	})
	srv := controlapi.NewServer(cfg, jobs, execs, br, ready, logger)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.Start(addr); err != nil && err != http.ErrServerClosed {
		logger.Error("control api exited", obs.Err(err))
	}
}

// readyFunc adapts a plain function to controlapi.ReadyChecker.
type readyFunc func(ctx context.Context) error

func (f readyFunc) Ready(ctx context.Context) error { return f(ctx) }

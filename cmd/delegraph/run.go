package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/verdantlabs/delegraph/config"
	"github.com/verdantlabs/delegraph/internal/metrics"
	"github.com/verdantlabs/delegraph/internal/telemetry"
	"github.com/verdantlabs/delegraph/persistence"
	"github.com/verdantlabs/delegraph/scheduler"
)

func runRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	planPath := fs.String("plan", "", "Path to the delegation plan (YAML)")
	asJSON := fs.Bool("json", false, "Print the full result as JSON")
	fs.Parse(args)

	if *planPath == "" {
		fmt.Fprintln(os.Stderr, "run requires --plan <path>")
		os.Exit(1)
	}

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.Log.BuildLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting delegraph",
		zap.String("version", Version),
		zap.String("plan", *planPath),
	)

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	req, err := loadPlan(*planPath)
	if err != nil {
		logger.Error("failed to load plan", zap.Error(err))
		os.Exit(1)
	}

	store, err := persistence.NewJobStore(storeConfig(cfg.Store))
	if err != nil {
		logger.Error("failed to open job store", zap.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	opts := []scheduler.Option{
		scheduler.WithConfig(schedulerConfig(cfg.Scheduler)),
		scheduler.WithLogger(logger),
		scheduler.WithStore(store),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, scheduler.WithMetrics(
			metrics.NewCollector(cfg.Metrics.Namespace, logger)))
	}

	sched, err := scheduler.New(shellExecutor(logger), opts...)
	if err != nil {
		logger.Error("failed to build scheduler", zap.Error(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := sched.RunDelegation(ctx, req)
	if err != nil {
		logger.Error("delegation failed", zap.Error(err))
		os.Exit(1)
	}

	if cfg.Cleanup.Enabled {
		removed, cleanupErr := store.Cleanup(ctx, cfg.Cleanup.OlderThan)
		if cleanupErr != nil {
			logger.Warn("cleanup failed", zap.Error(cleanupErr))
		} else if removed > 0 {
			logger.Info("cleaned up old jobs", zap.Int("removed", removed))
		}
	}

	if otelProviders != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if shutdownErr := otelProviders.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(shutdownErr))
		}
		cancel()
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(result); encErr != nil {
			logger.Error("failed to encode result", zap.Error(encErr))
			os.Exit(1)
		}
	} else {
		fmt.Println(result.Summary)
	}

	if result.HasFailures {
		os.Exit(1)
	}
}

// schedulerConfig maps the loaded file/env settings onto the scheduler's
// own config type.
func schedulerConfig(cfg config.SchedulerConfig) scheduler.Config {
	return scheduler.Config{
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		JobTimeout:        cfg.JobTimeout,
		MaxRetryAttempts:  cfg.MaxRetryAttempts,
		FailureThreshold:  cfg.FailureThreshold,
		MaxGraphNodes:     cfg.MaxGraphNodes,
		MaxGraphDepth:     cfg.MaxGraphDepth,
		DispatchRPS:       cfg.DispatchRPS,
	}
}

// storeConfig maps the loaded file/env settings onto the persistence
// package's config type.
func storeConfig(cfg config.StoreConfig) persistence.StoreConfig {
	return persistence.StoreConfig{
		Type: persistence.StoreType(cfg.Type),
		Redis: persistence.RedisStoreConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			PoolSize:  cfg.Redis.PoolSize,
			KeyPrefix: cfg.Redis.KeyPrefix,
		},
		Database: persistence.DatabaseStoreConfig{
			Driver:      cfg.Database.Driver,
			DSN:         cfg.Database.DSN,
			AutoMigrate: cfg.Database.AutoMigrate,
		},
		Mongo: persistence.MongoStoreConfig{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
		},
	}
}

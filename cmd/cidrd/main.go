package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/namsral/flag"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	_ "github.com/veesix-networks/cidrd/internal/gateway"
	"github.com/veesix-networks/cidrd/internal/service"
	"github.com/veesix-networks/cidrd/pkg/allocator"
	"github.com/veesix-networks/cidrd/pkg/component"
	"github.com/veesix-networks/cidrd/pkg/config"
	"github.com/veesix-networks/cidrd/pkg/logger"
	"github.com/veesix-networks/cidrd/pkg/opdb"
	"github.com/veesix-networks/cidrd/pkg/opdb/memory"
	"github.com/veesix-networks/cidrd/pkg/opdb/sqlite"
	"github.com/veesix-networks/cidrd/pkg/pool"
	"github.com/veesix-networks/cidrd/pkg/poolstore"
	"github.com/veesix-networks/cidrd/pkg/version"
	_ "github.com/veesix-networks/cidrd/plugins/all"
)

func main() {
	fs := flag.NewFlagSetWithEnvPrefix(os.Args[0], config.EnvPrefix, flag.ExitOnError)
	configPath := fs.String("config-file", config.DefaultPath, "Path to configuration file")
	showVersion := fs.Bool("version", false, "Print version and exit")
	fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Println("cidrd", version.Full())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		var poolErr *pool.ConfigError
		if errors.As(err, &poolErr) {
			log.Fatalf("Invalid pool configuration: %v", poolErr)
		}
		log.Fatalf("Failed to load config: %v", err)
	}

	levels := make(map[string]logger.LogLevel, len(cfg.Logging.Components))
	for name, level := range cfg.Logging.Components {
		levels[name] = logger.LogLevel(level)
	}
	logger.Configure(cfg.Logging.Format, logger.LogLevel(cfg.Logging.Level), levels)

	mainLog := logger.Get(logger.Main)
	mainLog.Info("Starting cidrd", "version", version.Version, "config", *configPath)

	p, err := cfg.BuildPool()
	if err != nil {
		log.Fatalf("Invalid pool configuration: %v", err)
	}
	mainLog.Info("Pool partitioned", "pool", p.String())

	db, err := openStore(cfg.Store)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}

	store := poolstore.New(p, db, poolstore.WithRetry(poolstore.RetryConfig{
		Attempts:        cfg.Store.Retry.Attempts,
		InitialInterval: cfg.Store.Retry.InitialInterval,
		Factor:          cfg.Store.Retry.Factor,
	}))

	providers := opdb.NewProviderRegistry()
	providers.Register(store)
	if err := providers.RestoreAll(context.Background(), db); err != nil {
		log.Fatalf("Failed to restore assignments: %v", err)
	}
	stats := store.Stats()
	mainLog.Info("Assignments restored", "assigned", stats.Assigned, "free", stats.Free)

	alloc, err := allocator.New(store, allocator.Config{NodePattern: cfg.Allocator.NodePattern})
	if err != nil {
		log.Fatalf("Failed to create allocator: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc, err := service.New(alloc, store, registry)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}

	deps := component.Dependencies{
		Config:   cfg,
		Service:  svc,
		Store:    store,
		Registry: registry,
	}

	components, err := component.LoadAll(deps)
	if err != nil {
		log.Fatalf("Failed to load components: %v", err)
	}

	orch := component.NewOrchestrator()
	for _, comp := range components {
		mainLog.Info("Loaded component", "name", comp.Name())
		orch.Register(comp)
	}

	ctx := context.Background()
	if err := orch.Start(ctx); err != nil {
		db.Close()
		log.Fatalf("Failed to start components: %v", err)
	}

	mainLog.Info("cidrd started successfully")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	mainLog.Info("Shutting down cidrd...")

	if err := orch.Stop(ctx); err != nil {
		mainLog.Error("Error stopping components", "error", err)
	}

	if err := db.Close(); err != nil {
		mainLog.Error("Error closing store", "error", err)
	}

	mainLog.Info("cidrd stopped")
}

func openStore(cfg config.Store) (opdb.Store, error) {
	switch cfg.Backend {
	case opdb.BackendSQLite:
		db, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return db, nil
	case opdb.BackendMemory:
		logger.Get(logger.Store).Warn("Using in-memory store; assignments will not survive a restart")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

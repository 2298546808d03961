package prometheus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veesix-networks/cidrd/pkg/component"
	"github.com/veesix-networks/cidrd/pkg/logger"
	"github.com/veesix-networks/cidrd/plugins/exporter/prometheus/metrics"
)

type Component struct {
	*component.Base
	logger       *slog.Logger
	registry     *prometheus.Registry
	addr         string
	server       *http.Server
	handlerCount int

	mu    sync.RWMutex
	bound net.Addr
}

func New(deps component.Dependencies) (component.Component, error) {
	cfg := deps.Config.Metrics
	if !cfg.Enabled {
		return nil, nil
	}
	if deps.Store == nil || deps.Registry == nil {
		return nil, fmt.Errorf("%s requires the pool store and a registry", Namespace)
	}

	addr := ":9090"
	if cfg.ListenAddress != "" {
		addr = cfg.ListenAddress
	}

	log := logger.Get(Namespace)
	handlers := metrics.DefaultRegistry().CreateHandlers(log)
	if err := deps.Registry.Register(metrics.NewCollector(deps.Store, log, handlers)); err != nil {
		return nil, fmt.Errorf("register pool collector: %w", err)
	}
	log.Info("Registered metric handlers", "count", len(handlers))

	return &Component{
		Base:         component.NewBase(Namespace),
		logger:       log,
		registry:     deps.Registry,
		addr:         addr,
		handlerCount: len(handlers),
	}, nil
}

func (c *Component) Start(ctx context.Context) error {
	c.StartContext(ctx)
	c.logger.Info("Starting Prometheus exporter", "addr", c.addr)

	lis, err := net.Listen("tcp", c.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	c.mu.Lock()
	c.bound = lis.Addr()
	c.mu.Unlock()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))

	c.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	c.SetRunning(true)

	c.Go(func() {
		c.logger.Info("Prometheus HTTP server listening", "addr", lis.Addr().String())
		if err := c.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("Prometheus HTTP server error", "error", err)
			c.SetRunning(false)
		}
	})

	return nil
}

func (c *Component) Stop(ctx context.Context) error {
	c.logger.Info("Stopping Prometheus exporter")

	var err error
	if c.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = c.server.Shutdown(shutdownCtx)
	}

	c.StopContext()
	return err
}

func (c *Component) Addr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.bound == nil {
		return c.addr
	}
	return c.bound.String()
}

type Status struct {
	component.Status
	HandlerCount int `json:"handler_count"`
}

func (c *Component) GetStatus() Status {
	return Status{
		Status:       component.StatusOf(c.Base, c.Addr()),
		HandlerCount: c.handlerCount,
	}
}

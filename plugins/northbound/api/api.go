package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/veesix-networks/cidrd/internal/service"
	"github.com/veesix-networks/cidrd/pkg/component"
	"github.com/veesix-networks/cidrd/pkg/logger"
)

const (
	PathAllocate    = "/api/v1/allocate"
	PathRelease     = "/api/v1/release"
	PathAssignments = "/api/v1/assignments"
	PathPool        = "/api/v1/pool"
	PathOpenAPI     = "/api/openapi.json"
)

type Component struct {
	*component.Base
	logger  *slog.Logger
	handler http.Handler
	addr    string
	server  *http.Server

	mu    sync.RWMutex
	bound net.Addr
}

func NewComponent(deps component.Dependencies) (component.Component, error) {
	cfg := deps.Config.API
	if !cfg.Enabled {
		return nil, nil
	}
	if deps.Service == nil {
		return nil, fmt.Errorf("%s requires the allocation service", Namespace)
	}

	addr := ":8080"
	if cfg.ListenAddress != "" {
		addr = cfg.ListenAddress
	}

	log := logger.Get(Namespace)
	return &Component{
		Base:    component.NewBase(Namespace),
		logger:  log,
		handler: NewHandler(deps.Service, log),
		addr:    addr,
	}, nil
}

func (c *Component) Start(ctx context.Context) error {
	c.StartContext(ctx)
	c.logger.Info("Starting API server", "addr", c.addr)

	lis, err := net.Listen("tcp", c.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	c.mu.Lock()
	c.bound = lis.Addr()
	c.mu.Unlock()

	c.server = &http.Server{
		Handler:           c.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	c.SetRunning(true)

	c.Go(func() {
		c.logger.Info("API server listening", "addr", lis.Addr().String())
		if err := c.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("API server error", "error", err)
			c.SetRunning(false)
		}
	})

	return nil
}

func (c *Component) Stop(ctx context.Context) error {
	c.logger.Info("Stopping API server")

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

func (c *Component) GetStatus() component.Status {
	return component.StatusOf(c.Base, c.Addr())
}

type handler struct {
	svc     *service.Service
	logger  *slog.Logger
	openapi []byte
}

// NewHandler returns the REST surface of the allocation service.
func NewHandler(svc *service.Service, log *slog.Logger) http.Handler {
	h := &handler{svc: svc, logger: log}

	doc, err := buildOpenAPISpec().MarshalJSON()
	if err != nil {
		log.Error("Failed to render OpenAPI document", "error", err)
	}
	h.openapi = doc

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+PathAllocate, h.handleAllocate)
	mux.HandleFunc("POST "+PathRelease, h.handleRelease)
	mux.HandleFunc("GET "+PathAssignments, h.handleAssignments)
	mux.HandleFunc("GET "+PathPool, h.handlePool)
	mux.HandleFunc("GET "+PathOpenAPI, h.handleOpenAPI)
	return mux
}

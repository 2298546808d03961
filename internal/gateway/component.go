package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"google.golang.org/grpc"

	"github.com/veesix-networks/cidrd/pkg/component"
	"github.com/veesix-networks/cidrd/pkg/logger"
)

const Namespace = "gateway"

func init() {
	component.Register(Namespace, New)
}

type Component struct {
	*component.Base

	logger   *slog.Logger
	server   *grpc.Server
	handler  *Server
	bindAddr string

	mu   sync.RWMutex
	addr net.Addr
}

func New(deps component.Dependencies) (component.Component, error) {
	cfg := deps.Config.Gateway
	if !cfg.Enabled {
		return nil, nil
	}
	if deps.Service == nil {
		return nil, fmt.Errorf("gateway requires the allocation service")
	}

	log := logger.Get(logger.Gateway)
	return &Component{
		Base:     component.NewBase(Namespace),
		logger:   log,
		handler:  NewServer(deps.Service, log),
		bindAddr: cfg.ListenAddress,
	}, nil
}

func (c *Component) Start(ctx context.Context) error {
	c.StartContext(ctx)
	c.logger.Info("Starting gateway component", "addr", c.bindAddr)

	lis, err := net.Listen("tcp", c.bindAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	c.mu.Lock()
	c.addr = lis.Addr()
	c.mu.Unlock()

	c.server = grpc.NewServer(grpc.UnaryInterceptor(c.logCalls))
	RegisterAllocationServer(c.server, c.handler)

	c.SetRunning(true)
	c.logger.Info("Gateway started", "addr", lis.Addr().String())

	c.Go(func() {
		if err := c.server.Serve(lis); err != nil {
			c.logger.Error("Gateway server error", "error", err)
			c.SetRunning(false)
		}
	})

	return nil
}

func (c *Component) Stop(ctx context.Context) error {
	c.logger.Info("Stopping gateway component")

	if c.server != nil {
		c.server.GracefulStop()
	}

	c.StopContext()
	return nil
}

// Addr is the bound listener address once started.
func (c *Component) Addr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.addr == nil {
		return c.bindAddr
	}
	return c.addr.String()
}

func (c *Component) GetStatus() component.Status {
	return component.StatusOf(c.Base, c.Addr())
}

func (c *Component) logCalls(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	if err != nil {
		c.logger.Debug("Call failed", "method", info.FullMethod, "error", err)
	}
	return resp, err
}

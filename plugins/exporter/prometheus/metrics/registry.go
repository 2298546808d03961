package metrics

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/veesix-networks/cidrd/pkg/poolstore"
)

// Source is the live state metric handlers read from.
type Source interface {
	Stats() poolstore.Stats
}

type MetricHandler interface {
	Name() string
	Describe(ch chan<- *prometheus.Desc)
	Collect(ctx context.Context, src Source, ch chan<- prometheus.Metric) error
}

type MetricHandlerFactory func(logger *slog.Logger) (MetricHandler, error)

type MetricHandlerRegistry struct {
	mu        sync.RWMutex
	factories map[string]MetricHandlerFactory
}

var defaultRegistry = &MetricHandlerRegistry{
	factories: make(map[string]MetricHandlerFactory),
}

func DefaultRegistry() *MetricHandlerRegistry {
	return defaultRegistry
}

func Register(name string, factory MetricHandlerFactory) {
	defaultRegistry.RegisterFactory(name, factory)
}

func (r *MetricHandlerRegistry) RegisterFactory(name string, factory MetricHandlerFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// CreateHandlers builds every registered handler in name order. Handlers
// that fail to build are logged and skipped.
func (r *MetricHandlerRegistry) CreateHandlers(logger *slog.Logger) []MetricHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)

	handlers := make([]MetricHandler, 0, len(names))
	for _, name := range names {
		handler, err := r.factories[name](logger)
		if err != nil {
			logger.Error("Failed to create metric handler", "name", name, "error", err)
			continue
		}
		handlers = append(handlers, handler)
	}
	return handlers
}

// Collector adapts a set of handlers to prometheus.Collector.
type Collector struct {
	src      Source
	logger   *slog.Logger
	handlers []MetricHandler
}

func NewCollector(src Source, logger *slog.Logger, handlers []MetricHandler) *Collector {
	return &Collector{src: src, logger: logger, handlers: handlers}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, handler := range c.handlers {
		handler.Describe(ch)
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx := context.Background()
	for _, handler := range c.handlers {
		if err := handler.Collect(ctx, c.src, ch); err != nil {
			c.logger.Error("Failed to collect metrics", "handler", handler.Name(), "error", err)
		}
	}
}

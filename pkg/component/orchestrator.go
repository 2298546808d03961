package component

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

type Orchestrator struct {
	components []Component
	started    int
	mu         sync.RWMutex
}

func NewOrchestrator() *Orchestrator {
	return &Orchestrator{
		components: make([]Component, 0),
	}
}

func (o *Orchestrator) Register(comp Component) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.components = append(o.components, comp)
}

func (o *Orchestrator) Components() []Component {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]Component(nil), o.components...)
}

// Start starts components in registration order. If one fails, the ones
// already started are stopped again before the error is returned.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, comp := range o.components {
		if err := comp.Start(ctx); err != nil {
			o.started = i
			startErr := fmt.Errorf("failed to start %s: %w", comp.Name(), err)
			return errors.Join(startErr, o.stopStarted(ctx))
		}
	}
	o.started = len(o.components)
	return nil
}

// Stop stops started components in reverse order and reports every failure.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopStarted(ctx)
}

func (o *Orchestrator) stopStarted(ctx context.Context) error {
	var errs []error
	for i := o.started - 1; i >= 0; i-- {
		comp := o.components[i]
		if err := comp.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop %s: %w", comp.Name(), err))
		}
	}
	o.started = 0
	return errors.Join(errs...)
}

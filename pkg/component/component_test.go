package component

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeComponent struct {
	*Base
	events   *[]string
	startErr error
	stopErr  error
}

func newFake(name string, events *[]string) *fakeComponent {
	return &fakeComponent{Base: NewBase(name), events: events}
}

func (f *fakeComponent) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.StartContext(ctx)
	f.SetRunning(true)
	*f.events = append(*f.events, "start "+f.Name())
	return nil
}

func (f *fakeComponent) Stop(ctx context.Context) error {
	f.StopContext()
	*f.events = append(*f.events, "stop "+f.Name())
	return f.stopErr
}

func TestOrchestratorOrder(t *testing.T) {
	var events []string
	orch := NewOrchestrator()
	a, b := newFake("a", &events), newFake("b", &events)
	orch.Register(a)
	orch.Register(b)

	require.NoError(t, orch.Start(context.Background()))
	assert.True(t, a.Running())
	require.NoError(t, orch.Stop(context.Background()))
	assert.False(t, a.Running())

	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, events)
}

func TestOrchestratorRollsBackOnStartFailure(t *testing.T) {
	var events []string
	orch := NewOrchestrator()
	bad := newFake("c", &events)
	bad.startErr = errors.New("address already in use")

	orch.Register(newFake("a", &events))
	orch.Register(newFake("b", &events))
	orch.Register(bad)

	err := orch.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, bad.startErr)
	assert.Contains(t, err.Error(), "failed to start c")
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, events)

	// Nothing left to stop.
	require.NoError(t, orch.Stop(context.Background()))
	assert.Len(t, events, 4)
}

func TestOrchestratorStopReportsEveryFailure(t *testing.T) {
	var events []string
	orch := NewOrchestrator()
	a, b := newFake("a", &events), newFake("b", &events)
	a.stopErr = errors.New("a failed")
	b.stopErr = errors.New("b failed")
	orch.Register(a)
	orch.Register(b)

	require.NoError(t, orch.Start(context.Background()))
	err := orch.Stop(context.Background())
	assert.ErrorIs(t, err, a.stopErr)
	assert.ErrorIs(t, err, b.stopErr)
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, events)
}

func TestBaseGoWaitsOnStop(t *testing.T) {
	b := NewBase("worker")
	b.StartContext(context.Background())

	done := make(chan struct{})
	b.Go(func() {
		<-b.Ctx.Done()
		close(done)
	})

	b.StopContext()
	select {
	case <-done:
	default:
		t.Fatal("goroutine still running after StopContext")
	}
}

func TestStatusOf(t *testing.T) {
	b := NewBase("api")
	assert.Equal(t, Status{State: "stopped", ListenAddress: ":8080"}, StatusOf(b, ":8080"))

	b.SetRunning(true)
	assert.Equal(t, Status{State: "running", ListenAddress: ":8080", Running: true}, StatusOf(b, ":8080"))
}

func TestRegistry(t *testing.T) {
	var events []string
	Register("test.enabled", func(deps Dependencies) (Component, error) {
		return newFake("test.enabled", &events), nil
	})
	Register("test.disabled", func(deps Dependencies) (Component, error) {
		return nil, nil
	})

	assert.Panics(t, func() {
		Register("test.enabled", func(deps Dependencies) (Component, error) { return nil, nil })
	})

	_, ok := Get("test.disabled")
	assert.True(t, ok)
	assert.Equal(t, []string{"test.disabled", "test.enabled"}, List())

	comps, err := LoadAll(Dependencies{})
	require.NoError(t, err)
	require.Len(t, comps, 1)
	assert.Equal(t, "test.enabled", comps[0].Name())
}

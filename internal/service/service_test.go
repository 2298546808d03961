package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/veesix-networks/cidrd/pkg/allocator"
	"github.com/veesix-networks/cidrd/pkg/opdb"
	"github.com/veesix-networks/cidrd/pkg/opdb/memory"
	"github.com/veesix-networks/cidrd/pkg/pool"
	"github.com/veesix-networks/cidrd/pkg/poolstore"
)

// brokenStore rejects every write while down is set.
type brokenStore struct {
	opdb.Store
	down bool
}

func (b *brokenStore) Put(ctx context.Context, namespace, key string, value []byte) error {
	if b.down {
		return errors.New("sqlite3: disk I/O error at /var/lib/cidrd/cidrd.db")
	}
	return b.Store.Put(ctx, namespace, key, value)
}

type fixture struct {
	svc   *Service
	store *poolstore.Store
	db    *brokenStore
	reg   *prometheus.Registry
}

func newFixture(t *testing.T, network, size string, cfg allocator.Config) *fixture {
	t.Helper()
	p, err := pool.New(network, size)
	require.NoError(t, err)

	db := &brokenStore{Store: memory.New()}
	store := poolstore.New(p, db, poolstore.WithRetry(poolstore.RetryConfig{
		Attempts:        2,
		InitialInterval: time.Millisecond,
	}))
	alloc, err := allocator.New(store, cfg)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	svc, err := New(alloc, store, reg)
	require.NoError(t, err)

	return &fixture{svc: svc, store: store, db: db, reg: reg}
}

func (f *fixture) count(op, outcome string) float64 {
	return testutil.ToFloat64(f.svc.requests.WithLabelValues(op, outcome))
}

func TestScenario(t *testing.T) {
	f := newFixture(t, "10.0.0.0/24", "/26", allocator.Config{})
	ctx := context.Background()

	resp, err := f.svc.Allocate(ctx, AllocateRequest{NodeID: "node-a", NetworkMode: "routed"})
	require.NoError(t, err)
	assert.Equal(t, AllocateResponse{RouteCIDR: "10.0.0.0/26"}, resp)

	resp, err = f.svc.Allocate(ctx, AllocateRequest{NodeID: "node-b", NetworkMode: "overlay"})
	require.NoError(t, err)
	assert.Equal(t, AllocateResponse{}, resp)

	resp, err = f.svc.Allocate(ctx, AllocateRequest{NodeID: "node-c", NetworkMode: "routed"})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.64/26", resp.RouteCIDR)

	rel, err := f.svc.Release(ctx, ReleaseRequest{NodeID: "node-a"})
	require.NoError(t, err)
	assert.True(t, rel.Released)

	resp, err = f.svc.Allocate(ctx, AllocateRequest{NodeID: "node-d", NetworkMode: "routed"})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.0/26", resp.RouteCIDR)

	assert.Equal(t, float64(3), f.count(OpAllocate, OutcomeAllocated))
	assert.Equal(t, float64(1), f.count(OpAllocate, OutcomeSkipped))
	assert.Equal(t, float64(1), f.count(OpRelease, OutcomeReleased))
}

func TestInvalidRequests(t *testing.T) {
	f := newFixture(t, "10.0.0.0/24", "/26", allocator.Config{})
	ctx := context.Background()

	_, err := f.svc.Allocate(ctx, AllocateRequest{NodeID: "  "})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.svc.Release(ctx, ReleaseRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	assert.Equal(t, float64(1), f.count(OpAllocate, OutcomeInvalid))
	assert.Equal(t, float64(1), f.count(OpRelease, OutcomeInvalid))
}

func TestExhaustionIsRetryable(t *testing.T) {
	f := newFixture(t, "10.0.0.0/24", "/25", allocator.Config{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.svc.Allocate(ctx, AllocateRequest{NodeID: fmt.Sprintf("node-%d", i)})
		require.NoError(t, err)
	}

	_, err := f.svc.Allocate(ctx, AllocateRequest{NodeID: "node-2"})
	assert.Equal(t, ErrUnavailable, err)
	assert.Equal(t, float64(1), f.count(OpAllocate, OutcomeExhausted))
}

func TestStoreFailureDoesNotLeakDetail(t *testing.T) {
	f := newFixture(t, "10.0.0.0/24", "/26", allocator.Config{})
	f.db.down = true

	_, err := f.svc.Allocate(context.Background(), AllocateRequest{NodeID: "node-a"})
	assert.Equal(t, ErrUnavailable, err)
	assert.NotContains(t, err.Error(), "sqlite3")
	assert.Equal(t, float64(1), f.count(OpAllocate, OutcomeStoreDown))
	assert.Zero(t, f.store.Stats().Assigned)

	f.db.down = false
	resp, err := f.svc.Allocate(context.Background(), AllocateRequest{NodeID: "node-a"})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.0/26", resp.RouteCIDR)
}

func TestReleaseUnknownNode(t *testing.T) {
	f := newFixture(t, "10.0.0.0/24", "/26", allocator.Config{})

	rel, err := f.svc.Release(context.Background(), ReleaseRequest{NodeID: "ghost"})
	require.NoError(t, err)
	assert.False(t, rel.Released)
	assert.Equal(t, float64(1), f.count(OpRelease, OutcomeNoop))
}

func TestNodePatternSkips(t *testing.T) {
	f := newFixture(t, "10.0.0.0/24", "/26", allocator.Config{NodePattern: "kubernetes-minion"})

	resp, err := f.svc.Allocate(context.Background(), AllocateRequest{NodeID: "etcd-1"})
	require.NoError(t, err)
	assert.Empty(t, resp.RouteCIDR)
	assert.Zero(t, f.store.Stats().Assigned)
}

func TestConcurrentRequestsForOneNode(t *testing.T) {
	f := newFixture(t, "10.0.0.0/24", "/28", allocator.Config{})
	ctx := context.Background()

	results := make([]string, 50)
	var g errgroup.Group
	for i := range results {
		i := i
		g.Go(func() error {
			resp, err := f.svc.Allocate(ctx, AllocateRequest{NodeID: "node-a"})
			results[i] = resp.RouteCIDR
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, r := range results {
		assert.Equal(t, "10.0.0.0/28", r)
	}
	assert.Equal(t, uint64(1), f.store.Stats().Assigned)
}

func TestCancelledCallerStillAllocates(t *testing.T) {
	f := newFixture(t, "10.0.0.0/24", "/26", allocator.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := f.svc.Allocate(ctx, AllocateRequest{NodeID: "node-a"})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.0/26", resp.RouteCIDR)
}

func TestListAndStatus(t *testing.T) {
	f := newFixture(t, "10.0.0.0/24", "/26", allocator.Config{})
	ctx := context.Background()

	for _, n := range []string{"node-a", "node-b"} {
		_, err := f.svc.Allocate(ctx, AllocateRequest{NodeID: n})
		require.NoError(t, err)
	}

	list := f.svc.List(ctx)
	require.Len(t, list.Assignments, 2)
	assert.Equal(t, "node-a", list.Assignments[0].NodeID)
	assert.Equal(t, "10.0.0.0/26", list.Assignments[0].RouteCIDR)
	assert.Equal(t, uint64(1), list.Assignments[1].Index)

	assert.Equal(t, PoolStatus{
		Network:           "10.0.0.0/24",
		BlockPrefixLength: 26,
		Total:             4,
		Assigned:          2,
		Free:              2,
	}, f.svc.Status())
}

func TestDuplicateRegistration(t *testing.T) {
	f := newFixture(t, "10.0.0.0/24", "/26", allocator.Config{})
	_, err := New(nil, f.store, f.reg)
	assert.Error(t, err)
}

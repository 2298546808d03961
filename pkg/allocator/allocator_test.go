package allocator

import (
	"context"
	"fmt"
	"regexp/syntax"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/veesix-networks/cidrd/pkg/opdb/memory"
	"github.com/veesix-networks/cidrd/pkg/pool"
	"github.com/veesix-networks/cidrd/pkg/poolstore"
)

func newTestAllocator(t *testing.T, network, size string, cfg Config) (*Allocator, *poolstore.Store) {
	t.Helper()
	p, err := pool.New(network, size)
	require.NoError(t, err)
	store := poolstore.New(p, memory.New(), poolstore.WithRetry(poolstore.RetryConfig{
		Attempts:        2,
		InitialInterval: time.Millisecond,
	}))
	a, err := New(store, cfg)
	require.NoError(t, err)
	return a, store
}

// countingStore records calls so tests can assert the pool store was not touched.
type countingStore struct {
	PoolStore
	lookups, assigns, releases int
}

func (c *countingStore) Lookup(ctx context.Context, nodeID string) (poolstore.Assignment, bool, error) {
	c.lookups++
	return c.PoolStore.Lookup(ctx, nodeID)
}

func (c *countingStore) TryAssign(ctx context.Context, nodeID string) (poolstore.Assignment, error) {
	c.assigns++
	return c.PoolStore.TryAssign(ctx, nodeID)
}

func (c *countingStore) Release(ctx context.Context, nodeID string) (bool, error) {
	c.releases++
	return c.PoolStore.Release(ctx, nodeID)
}

func TestOverlayNodesSkipThePool(t *testing.T) {
	_, store := newTestAllocator(t, "10.0.0.0/24", "/26", Config{})
	counting := &countingStore{PoolStore: store}
	a, err := New(counting, Config{})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, ok, err := a.Allocate(context.Background(), fmt.Sprintf("overlay-%d", i), ModeOverlay)
		require.NoError(t, err)
		assert.False(t, ok)
	}

	assert.Zero(t, counting.lookups+counting.assigns)
	assert.Equal(t, poolstore.Stats{Total: 4, Free: 4}, store.Stats())
}

func TestNodePatternFiltersNodes(t *testing.T) {
	a, store := newTestAllocator(t, "10.0.0.0/24", "/26", Config{NodePattern: "kubernetes-minion"})

	_, ok, err := a.Allocate(context.Background(), "kubernetes-master", "routed")
	require.NoError(t, err)
	assert.False(t, ok)

	got, ok, err := a.Allocate(context.Background(), "kubernetes-minion-1", "routed")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.0/26", got.Block.String())
	assert.Equal(t, uint64(1), store.Stats().Assigned)
}

func TestInvalidNodePattern(t *testing.T) {
	_, err := New(nil, Config{NodePattern: "("})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `node pattern "("`)

	var syntaxErr *syntax.Error
	assert.ErrorAs(t, err, &syntaxErr)
}

func TestAllocateIsIdempotent(t *testing.T) {
	a, store := newTestAllocator(t, "10.0.0.0/24", "/26", Config{})
	ctx := context.Background()

	first, ok, err := a.Allocate(ctx, "node-a", "routed")
	require.NoError(t, err)
	require.True(t, ok)

	for i := 0; i < 5; i++ {
		again, ok, err := a.Allocate(ctx, "node-a", "routed")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, first.Block, again.Block)
	}
	assert.Equal(t, uint64(1), store.Stats().Assigned)
}

func TestEmptyNodeID(t *testing.T) {
	a, _ := newTestAllocator(t, "10.0.0.0/24", "/26", Config{})

	_, _, err := a.Allocate(context.Background(), "", "routed")
	assert.ErrorIs(t, err, ErrEmptyNodeID)
	_, err = a.Release(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyNodeID)
}

func TestExhaustionPropagates(t *testing.T) {
	a, _ := newTestAllocator(t, "10.0.0.0/24", "/26", Config{})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, ok, err := a.Allocate(ctx, fmt.Sprintf("node-%d", i), "")
		require.NoError(t, err)
		require.True(t, ok)
	}

	_, ok, err := a.Allocate(ctx, "node-4", "")
	assert.False(t, ok)
	assert.ErrorIs(t, err, poolstore.ErrPoolExhausted)
}

func TestScenario(t *testing.T) {
	a, _ := newTestAllocator(t, "10.0.0.0/24", "/26", Config{})
	ctx := context.Background()

	nodeA, ok, err := a.Allocate(ctx, "node-a", "routed")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.0/26", nodeA.Block.String())

	_, ok, err = a.Allocate(ctx, "node-b", ModeOverlay)
	require.NoError(t, err)
	assert.False(t, ok)

	nodeC, ok, err := a.Allocate(ctx, "node-c", "routed")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.64/26", nodeC.Block.String())

	released, err := a.Release(ctx, "node-a")
	require.NoError(t, err)
	assert.True(t, released)

	released, err = a.Release(ctx, "node-a")
	require.NoError(t, err)
	assert.False(t, released)

	nodeD, ok, err := a.Allocate(ctx, "node-d", "routed")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.0/26", nodeD.Block.String())
}

func TestConcurrentDistinctNodesGetDisjointBlocks(t *testing.T) {
	a, _ := newTestAllocator(t, "10.0.0.0/20", "/26", Config{})
	ctx := context.Background()

	const nodes = 64
	blocks := make([]string, nodes)
	var g errgroup.Group
	for i := 0; i < nodes; i++ {
		i := i
		g.Go(func() error {
			// every node asks twice to mix lookups with assignments
			for j := 0; j < 2; j++ {
				got, _, err := a.Allocate(ctx, fmt.Sprintf("node-%d", i), "routed")
				if err != nil {
					return err
				}
				if blocks[i] != "" && blocks[i] != got.Block.String() {
					return fmt.Errorf("node-%d moved from %s to %s", i, blocks[i], got.Block)
				}
				blocks[i] = got.Block.String()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[string]bool, nodes)
	for _, b := range blocks {
		assert.False(t, seen[b], "block %s handed out twice", b)
		seen[b] = true
	}
}

// Package poolstore is the source of truth for block assignments: an
// in-memory table guarded by a single mutex and written through to an
// opdb.Store before every change is committed.
package poolstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/veesix-networks/cidrd/pkg/logger"
	"github.com/veesix-networks/cidrd/pkg/opdb"
	"github.com/veesix-networks/cidrd/pkg/pool"
)

type Assignment struct {
	NodeID     string
	Block      pool.Block
	AssignedAt time.Time
}

type Stats struct {
	Total    uint64
	Assigned uint64
	Free     uint64
}

// record is the persisted form of an Assignment, keyed by node id.
type record struct {
	Block      string    `json:"block"`
	Index      uint64    `json:"index"`
	AssignedAt time.Time `json:"assigned_at"`
}

type RetryConfig struct {
	Attempts        int
	InitialInterval time.Duration
	Factor          float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:        4,
		InitialInterval: 50 * time.Millisecond,
		Factor:          2,
	}
}

type Option func(*Store)

func WithRetry(cfg RetryConfig) Option {
	return func(s *Store) {
		if cfg.Attempts < 1 {
			cfg.Attempts = 1
		}
		if cfg.Factor < 1 {
			cfg.Factor = 1
		}
		s.backoff = wait.Backoff{
			Duration: cfg.InitialInterval,
			Factor:   cfg.Factor,
			Jitter:   0.1,
			Steps:    cfg.Attempts,
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

type Store struct {
	pool    *pool.Pool
	db      opdb.Store
	backoff wait.Backoff
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	byNode  map[string]Assignment
	byIndex map[uint64]string
	// hint is a lower bound for the lowest free index.
	hint uint64
}

func New(p *pool.Pool, db opdb.Store, opts ...Option) *Store {
	s := &Store{
		pool:    p,
		db:      db,
		logger:  logger.Get(logger.Store),
		now:     func() time.Time { return time.Now().UTC() },
		byNode:  make(map[string]Assignment),
		byIndex: make(map[uint64]string),
	}
	WithRetry(DefaultRetryConfig())(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Pool() *pool.Pool {
	return s.pool
}

func (s *Store) Lookup(ctx context.Context, nodeID string) (Assignment, bool, error) {
	if err := ctx.Err(); err != nil {
		return Assignment{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byNode[nodeID]
	return a, ok, nil
}

// TryAssign hands nodeID the lowest-indexed free block. A node that already
// holds a block gets that block back.
func (s *Store) TryAssign(ctx context.Context, nodeID string) (Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.byNode[nodeID]; ok {
		return a, nil
	}

	if uint64(len(s.byIndex)) >= s.pool.Count() {
		return Assignment{}, ErrPoolExhausted
	}

	idx := s.lowestFree()
	a := Assignment{
		NodeID:     nodeID,
		Block:      s.pool.Block(idx),
		AssignedAt: s.now(),
	}

	value, err := json.Marshal(record{
		Block:      a.Block.String(),
		Index:      a.Block.Index,
		AssignedAt: a.AssignedAt,
	})
	if err != nil {
		return Assignment{}, errors.Wrap(err, "encode assignment")
	}

	if err := s.persist(ctx, "put", func(ctx context.Context) error {
		return s.db.Put(ctx, opdb.NamespaceBlockAssignments, nodeID, value)
	}); err != nil {
		s.discard(ctx, nodeID)
		return Assignment{}, err
	}

	s.byNode[nodeID] = a
	s.byIndex[idx] = nodeID
	s.hint = idx + 1

	s.logger.Info("Block assigned", "node_id", nodeID, "block", a.Block, "index", idx)
	return a, nil
}

// Release frees the block held by nodeID and reports whether there was one.
func (s *Store) Release(ctx context.Context, nodeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byNode[nodeID]
	if !ok {
		return false, nil
	}

	if err := s.persist(ctx, "delete", func(ctx context.Context) error {
		return s.db.Delete(ctx, opdb.NamespaceBlockAssignments, nodeID)
	}); err != nil {
		return false, err
	}

	delete(s.byNode, nodeID)
	delete(s.byIndex, a.Block.Index)
	if a.Block.Index < s.hint {
		s.hint = a.Block.Index
	}

	s.logger.Info("Block released", "node_id", nodeID, "block", a.Block, "index", a.Block.Index)
	return true, nil
}

// List returns every live assignment ordered by block index.
func (s *Store) List(ctx context.Context) []Assignment {
	s.mu.Lock()
	out := make([]Assignment, 0, len(s.byNode))
	for _, a := range s.byNode {
		out = append(out, a)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Block.Index < out[j].Block.Index
	})
	return out
}

func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.pool.Count()
	assigned := uint64(len(s.byIndex))
	return Stats{
		Total:    total,
		Assigned: assigned,
		Free:     total - assigned,
	}
}

// lowestFree must be called with mu held and at least one block free.
func (s *Store) lowestFree() uint64 {
	for idx := s.hint; idx < s.pool.Count(); idx++ {
		if _, used := s.byIndex[idx]; !used {
			return idx
		}
	}
	panic("poolstore: lowestFree called on a full pool")
}

// discard removes a record whose write was reported as failed but may have
// been committed anyway. The node holds no block in the table, so any record
// under its key is stale and would collide with the next holder of the index.
func (s *Store) discard(ctx context.Context, nodeID string) {
	if err := s.db.Delete(context.WithoutCancel(ctx), opdb.NamespaceBlockAssignments, nodeID); err != nil {
		s.logger.Warn("Failed to discard unconfirmed assignment", "node_id", nodeID, "error", err)
	}
}

func (s *Store) persist(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error
	attempt := 0

	err := wait.ExponentialBackoffWithContext(ctx, s.backoff, func(ctx context.Context) (bool, error) {
		attempt++
		if lastErr = fn(ctx); lastErr != nil {
			s.logger.Warn("Store write failed", "op", op, "attempt", attempt, "error", lastErr)
			return false, nil
		}
		return true, nil
	})
	if err == nil {
		return nil
	}
	if lastErr == nil {
		return err
	}

	s.logger.Error("Store write gave up", "op", op, "attempts", attempt, "error", lastErr)
	return errors.Wrapf(ErrStoreUnavailable, "%s after %d attempts: %v", op, attempt, lastErr)
}

// Package allocator decides whether a node needs a route CIDR and, if it
// does, finds or creates its block in the pool store.
package allocator

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/pkg/errors"

	"github.com/veesix-networks/cidrd/pkg/logger"
	"github.com/veesix-networks/cidrd/pkg/poolstore"
)

// ModeOverlay nodes address themselves through the overlay fabric and never
// consume pool capacity.
const ModeOverlay = "overlay"

var ErrEmptyNodeID = errors.New("node id is empty")

type PoolStore interface {
	Lookup(ctx context.Context, nodeID string) (poolstore.Assignment, bool, error)
	TryAssign(ctx context.Context, nodeID string) (poolstore.Assignment, error)
	Release(ctx context.Context, nodeID string) (bool, error)
}

type Config struct {
	// NodePattern restricts allocation to node ids matching this regular
	// expression. Empty matches every node.
	NodePattern string
}

type Allocator struct {
	store    PoolStore
	selector *regexp.Regexp
	logger   *slog.Logger
}

func New(store PoolStore, cfg Config) (*Allocator, error) {
	a := &Allocator{
		store:  store,
		logger: logger.Get(logger.Allocator),
	}

	if cfg.NodePattern != "" {
		re, err := regexp.Compile(cfg.NodePattern)
		if err != nil {
			return nil, errors.Wrapf(err, "node pattern %q", cfg.NodePattern)
		}
		a.selector = re
	}

	return a, nil
}

// NeedsBlock reports whether a node in networkMode gets a block at all, and
// if not, why.
func (a *Allocator) NeedsBlock(nodeID, networkMode string) (bool, string) {
	if networkMode == ModeOverlay {
		return false, "overlay network mode"
	}
	if a.selector != nil && !a.selector.MatchString(nodeID) {
		return false, "node id does not match " + a.selector.String()
	}
	return true, ""
}

// Allocate returns the node's block, creating it on first request. The bool
// is false when the node needs no block. Pool store errors are returned
// unchanged.
func (a *Allocator) Allocate(ctx context.Context, nodeID, networkMode string) (poolstore.Assignment, bool, error) {
	if nodeID == "" {
		return poolstore.Assignment{}, false, ErrEmptyNodeID
	}

	if needed, reason := a.NeedsBlock(nodeID, networkMode); !needed {
		a.logger.Debug("No block needed", "node_id", nodeID, "network_mode", networkMode, "reason", reason)
		return poolstore.Assignment{}, false, nil
	}

	existing, ok, err := a.store.Lookup(ctx, nodeID)
	if err != nil {
		return poolstore.Assignment{}, false, err
	}
	if ok {
		return existing, true, nil
	}

	assigned, err := a.store.TryAssign(ctx, nodeID)
	if err != nil {
		return poolstore.Assignment{}, false, err
	}
	return assigned, true, nil
}

// Release returns a decommissioned node's block to the pool.
func (a *Allocator) Release(ctx context.Context, nodeID string) (bool, error) {
	if nodeID == "" {
		return false, ErrEmptyNodeID
	}
	return a.store.Release(ctx, nodeID)
}

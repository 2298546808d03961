package poolstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/veesix-networks/cidrd/pkg/opdb"
	"github.com/veesix-networks/cidrd/pkg/pool"
)

func (s *Store) Namespaces() []string {
	return []string{opdb.NamespaceBlockAssignments}
}

// Restore rebuilds the table from db. Records that do not fit the configured
// pool, or two nodes claiming one block, fail with a *pool.ConfigError: the
// pool definition changed underneath persisted state.
func (s *Store) Restore(ctx context.Context, db opdb.Store) error {
	byNode := make(map[string]Assignment)
	byIndex := make(map[uint64]string)

	err := db.Load(ctx, opdb.NamespaceBlockAssignments, func(nodeID string, value []byte) error {
		var rec record
		if err := json.Unmarshal(value, &rec); err != nil {
			return errors.Wrapf(err, "decode assignment for %s", nodeID)
		}

		block, ok := s.pool.Parse(rec.Block)
		if !ok || block.Index != rec.Index {
			return &pool.ConfigError{
				Field:  "network",
				Value:  s.pool.Network().String(),
				Reason: fmt.Sprintf("persisted block %s (index %d) of node %s is not part of %s", rec.Block, rec.Index, nodeID, s.pool),
			}
		}
		if other, taken := byIndex[block.Index]; taken {
			return &pool.ConfigError{
				Field:  "network",
				Value:  s.pool.Network().String(),
				Reason: fmt.Sprintf("persisted block %s claimed by both %s and %s", rec.Block, other, nodeID),
			}
		}

		byNode[nodeID] = Assignment{NodeID: nodeID, Block: block, AssignedAt: rec.AssignedAt}
		byIndex[block.Index] = nodeID
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.byNode = byNode
	s.byIndex = byIndex
	s.hint = 0
	s.mu.Unlock()

	s.logger.Info("Assignments restored", "count", len(byNode), "pool", s.pool.String())
	return nil
}

var _ opdb.Provider = (*Store)(nil)

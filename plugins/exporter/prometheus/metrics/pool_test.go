package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veesix-networks/cidrd/pkg/logger"
	"github.com/veesix-networks/cidrd/pkg/poolstore"
)

type staticSource poolstore.Stats

func (s staticSource) Stats() poolstore.Stats {
	return poolstore.Stats(s)
}

func TestPoolCollector(t *testing.T) {
	log := logger.Get(logger.Metrics)
	handlers := DefaultRegistry().CreateHandlers(log)
	require.Len(t, handlers, 1)
	assert.Equal(t, "pool", handlers[0].Name())

	c := NewCollector(staticSource{Total: 4, Assigned: 3, Free: 1}, log, handlers)

	expected := `
# HELP cidrd_pool_blocks Blocks in the pool by state.
# TYPE cidrd_pool_blocks gauge
cidrd_pool_blocks{state="assigned"} 3
cidrd_pool_blocks{state="free"} 1
# HELP cidrd_pool_blocks_total Blocks the pool is partitioned into.
# TYPE cidrd_pool_blocks_total gauge
cidrd_pool_blocks_total 4
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
	assert.Equal(t, 2, testutil.CollectAndCount(c, "cidrd_pool_blocks"))
}

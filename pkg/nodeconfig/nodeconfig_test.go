package nodeconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veesix-networks/cidrd/internal/service"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		data string
		want service.AllocateRequest
	}{
		{
			name: "node id",
			data: "node_id: node-a\nnetwork_mode: routed\n",
			want: service.AllocateRequest{NodeID: "node-a", NetworkMode: "routed"},
		},
		{
			name: "minion id alias",
			data: "minion_id: kubernetes-minion-1\nnetwork_mode: overlay\n",
			want: service.AllocateRequest{NodeID: "kubernetes-minion-1", NetworkMode: "overlay"},
		},
		{
			name: "node id wins",
			data: "node_id: node-a\nminion_id: other\n",
			want: service.AllocateRequest{NodeID: "node-a"},
		},
		{
			name: "unrelated keys ignored",
			data: "node_id: node-a\nroles: [kubernetes-pool]\n",
			want: service.AllocateRequest{NodeID: "node-a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Parse([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, n.AllocateRequest())
		})
	}
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("network_mode: routed\n"))
	assert.ErrorContains(t, err, "neither node_id nor minion_id")

	_, err = Parse([]byte("node_id: [unterminated"))
	assert.ErrorContains(t, err, "parse node record")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte("node_id: node-a\n"), 0o644))

	n, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "node-a", n.ID())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

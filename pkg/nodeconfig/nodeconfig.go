// Package nodeconfig reads the per-node record a provisioning system keeps
// for a cluster node, as far as route CIDR allocation is concerned.
package nodeconfig

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/veesix-networks/cidrd/internal/service"
)

// Node is a node record. minion_id is accepted as an alias for node_id so
// existing Salt pillar files can be fed in unchanged.
type Node struct {
	NodeID      string `yaml:"node_id,omitempty"`
	MinionID    string `yaml:"minion_id,omitempty"`
	NetworkMode string `yaml:"network_mode,omitempty"`
}

func Load(path string) (Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Node{}, fmt.Errorf("read node record: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (Node, error) {
	var n Node
	if err := yaml.Unmarshal(data, &n); err != nil {
		return Node{}, fmt.Errorf("parse node record: %w", err)
	}
	if n.ID() == "" {
		return Node{}, fmt.Errorf("node record has neither node_id nor minion_id")
	}
	return n, nil
}

func (n Node) ID() string {
	if id := strings.TrimSpace(n.NodeID); id != "" {
		return id
	}
	return strings.TrimSpace(n.MinionID)
}

func (n Node) AllocateRequest() service.AllocateRequest {
	return service.AllocateRequest{
		NodeID:      n.ID(),
		NetworkMode: n.NetworkMode,
	}
}

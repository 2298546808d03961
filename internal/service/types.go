package service

import "time"

type AllocateRequest struct {
	NodeID      string `json:"node_id"`
	NetworkMode string `json:"network_mode,omitempty"`
}

// AllocateResponse is empty when the node needs no block.
type AllocateResponse struct {
	RouteCIDR string `json:"route_cidr,omitempty"`
}

type ReleaseRequest struct {
	NodeID string `json:"node_id"`
}

type ReleaseResponse struct {
	Released bool `json:"released"`
}

type Assignment struct {
	NodeID     string    `json:"node_id"`
	RouteCIDR  string    `json:"route_cidr"`
	Index      uint64    `json:"index"`
	AssignedAt time.Time `json:"assigned_at"`
}

type AssignmentList struct {
	Assignments []Assignment `json:"assignments"`
}

type PoolStatus struct {
	Network           string `json:"network"`
	BlockPrefixLength int    `json:"block_prefix_length"`
	Total             uint64 `json:"total"`
	Assigned          uint64 `json:"assigned"`
	Free              uint64 `json:"free"`
}

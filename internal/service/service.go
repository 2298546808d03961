// Package service is the request/response boundary in front of the
// allocator. It is the only layer that turns internal failures into
// caller-visible outcomes; transports render its sentinel errors.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/veesix-networks/cidrd/pkg/allocator"
	"github.com/veesix-networks/cidrd/pkg/logger"
	"github.com/veesix-networks/cidrd/pkg/pool"
	"github.com/veesix-networks/cidrd/pkg/poolstore"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnavailable is retryable: the pool is full or the store is down.
	ErrUnavailable = errors.New("allocation temporarily unavailable")
	ErrInternal    = errors.New("internal error")
)

// RetryAfter is the back-off hint sent along with ErrUnavailable.
const RetryAfter = 5 * time.Second

const (
	OpAllocate = "allocate"
	OpRelease  = "release"

	OutcomeAllocated = "allocated"
	OutcomeSkipped   = "skipped"
	OutcomeReleased  = "released"
	OutcomeNoop      = "noop"
	OutcomeInvalid   = "invalid"
	OutcomeExhausted = "exhausted"
	OutcomeStoreDown = "store_unavailable"
	OutcomeError     = "error"
)

// Inventory is the read-only view of the pool store used by admin calls.
type Inventory interface {
	Pool() *pool.Pool
	List(ctx context.Context) []poolstore.Assignment
	Stats() poolstore.Stats
}

type Service struct {
	allocator *allocator.Allocator
	inventory Inventory
	flight    singleflight.Group
	requests  *prometheus.CounterVec
	logger    *slog.Logger
}

// New wires the service. reg may be nil, in which case request counters are
// kept but not exported.
func New(alloc *allocator.Allocator, inventory Inventory, reg prometheus.Registerer) (*Service, error) {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cidrd",
		Name:      "requests_total",
		Help:      "Allocation service requests by operation and outcome.",
	}, []string{"operation", "outcome"})

	if reg != nil {
		if err := reg.Register(requests); err != nil {
			return nil, fmt.Errorf("register request metrics: %w", err)
		}
	}

	return &Service{
		allocator: alloc,
		inventory: inventory,
		requests:  requests,
		logger:    logger.Get(logger.Service),
	}, nil
}

// Allocate returns the node's route CIDR, or an empty response when it
// needs none. Concurrent requests for the same node share one allocation.
func (s *Service) Allocate(ctx context.Context, req AllocateRequest) (AllocateResponse, error) {
	nodeID := strings.TrimSpace(req.NodeID)
	log := logger.WithNode(s.logger, logger.NodeAttrs{
		NodeID:      nodeID,
		NetworkMode: req.NetworkMode,
		RequestID:   uuid.NewString(),
	})

	if nodeID == "" {
		s.requests.WithLabelValues(OpAllocate, OutcomeInvalid).Inc()
		return AllocateResponse{}, fmt.Errorf("%w: node_id is required", ErrInvalidRequest)
	}

	key := req.NetworkMode + "/" + nodeID
	v, err, shared := s.flight.Do(key, func() (any, error) {
		// The allocation is short and bounded; one caller going away must
		// not fail the others waiting on the same key.
		a, ok, err := s.allocator.Allocate(context.WithoutCancel(ctx), nodeID, req.NetworkMode)
		if err != nil {
			return nil, err
		}
		if !ok {
			return AllocateResponse{}, nil
		}
		return AllocateResponse{RouteCIDR: a.Block.String()}, nil
	})
	if err != nil {
		return AllocateResponse{}, s.translate(log, OpAllocate, err)
	}

	resp := v.(AllocateResponse)
	if resp.RouteCIDR == "" {
		s.requests.WithLabelValues(OpAllocate, OutcomeSkipped).Inc()
		log.Debug("No route CIDR needed")
		return resp, nil
	}

	s.requests.WithLabelValues(OpAllocate, OutcomeAllocated).Inc()
	log.Info("Route CIDR allocated", "route_cidr", resp.RouteCIDR, "shared", shared)
	return resp, nil
}

// Release frees the node's block. Releasing a node without one succeeds
// with Released=false.
func (s *Service) Release(ctx context.Context, req ReleaseRequest) (ReleaseResponse, error) {
	nodeID := strings.TrimSpace(req.NodeID)
	log := logger.WithNode(s.logger, logger.NodeAttrs{
		NodeID:    nodeID,
		RequestID: uuid.NewString(),
	})

	if nodeID == "" {
		s.requests.WithLabelValues(OpRelease, OutcomeInvalid).Inc()
		return ReleaseResponse{}, fmt.Errorf("%w: node_id is required", ErrInvalidRequest)
	}

	released, err := s.allocator.Release(ctx, nodeID)
	if err != nil {
		return ReleaseResponse{}, s.translate(log, OpRelease, err)
	}

	if released {
		s.requests.WithLabelValues(OpRelease, OutcomeReleased).Inc()
		log.Info("Route CIDR released")
	} else {
		s.requests.WithLabelValues(OpRelease, OutcomeNoop).Inc()
		log.Debug("Nothing to release")
	}
	return ReleaseResponse{Released: released}, nil
}

func (s *Service) List(ctx context.Context) AssignmentList {
	assignments := s.inventory.List(ctx)
	out := AssignmentList{Assignments: make([]Assignment, 0, len(assignments))}
	for _, a := range assignments {
		out.Assignments = append(out.Assignments, Assignment{
			NodeID:     a.NodeID,
			RouteCIDR:  a.Block.String(),
			Index:      a.Block.Index,
			AssignedAt: a.AssignedAt,
		})
	}
	return out
}

func (s *Service) Status() PoolStatus {
	p := s.inventory.Pool()
	stats := s.inventory.Stats()
	return PoolStatus{
		Network:           p.Network().String(),
		BlockPrefixLength: p.BlockLen(),
		Total:             stats.Total,
		Assigned:          stats.Assigned,
		Free:              stats.Free,
	}
}

// translate logs the detailed cause and returns the coarse error a caller
// is allowed to see.
func (s *Service) translate(log *slog.Logger, op string, err error) error {
	switch {
	case errors.Is(err, allocator.ErrEmptyNodeID):
		s.requests.WithLabelValues(op, OutcomeInvalid).Inc()
		return fmt.Errorf("%w: node_id is required", ErrInvalidRequest)

	case errors.Is(err, poolstore.ErrPoolExhausted):
		s.requests.WithLabelValues(op, OutcomeExhausted).Inc()
		stats := s.inventory.Stats()
		log.Warn("Pool exhausted", "operation", op, "total", stats.Total)
		return ErrUnavailable

	case errors.Is(err, poolstore.ErrStoreUnavailable),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		s.requests.WithLabelValues(op, OutcomeStoreDown).Inc()
		log.Error("Store unavailable", "operation", op, "error", err)
		return ErrUnavailable

	default:
		s.requests.WithLabelValues(op, OutcomeError).Inc()
		log.Error("Request failed", "operation", op, "error", err)
		return ErrInternal
	}
}

package gateway

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/veesix-networks/cidrd/internal/service"
)

// RetryAfterKey carries the back-off hint, in seconds, on Unavailable errors.
const RetryAfterKey = "retry-after"

type Server struct {
	svc    *service.Service
	logger *slog.Logger
}

func NewServer(svc *service.Service, logger *slog.Logger) *Server {
	return &Server{svc: svc, logger: logger}
}

func (s *Server) Allocate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req service.AllocateRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	resp, err := s.svc.Allocate(ctx, req)
	if err != nil {
		return nil, s.statusError(ctx, err)
	}
	return s.reply(resp)
}

func (s *Server) Release(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req service.ReleaseRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	resp, err := s.svc.Release(ctx, req)
	if err != nil {
		return nil, s.statusError(ctx, err)
	}
	return s.reply(resp)
}

func (s *Server) ListAssignments(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return s.reply(s.svc.List(ctx))
}

func (s *Server) PoolStatus(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return s.reply(s.svc.Status())
}

func (s *Server) reply(v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		s.logger.Error("Failed to encode reply", "error", err)
		return nil, status.Error(codes.Internal, service.ErrInternal.Error())
	}
	return out, nil
}

func (s *Server) statusError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrUnavailable):
		retry := strconv.Itoa(int(service.RetryAfter.Seconds()))
		if serr := grpc.SetTrailer(ctx, metadata.Pairs(RetryAfterKey, retry)); serr != nil {
			s.logger.Debug("Failed to set trailer", "error", serr)
		}
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, service.ErrInternal.Error())
	}
}

package gateway

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/veesix-networks/cidrd/internal/service"
)

type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Dial opens a plaintext connection to a cidrd gateway.
func Dial(target string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	return grpc.NewClient(target, opts...)
}

func (c *Client) Allocate(ctx context.Context, req service.AllocateRequest) (service.AllocateResponse, error) {
	var resp service.AllocateResponse
	err := c.invoke(ctx, MethodAllocate, req, &resp)
	return resp, err
}

func (c *Client) Release(ctx context.Context, req service.ReleaseRequest) (service.ReleaseResponse, error) {
	var resp service.ReleaseResponse
	err := c.invoke(ctx, MethodRelease, req, &resp)
	return resp, err
}

func (c *Client) List(ctx context.Context) (service.AssignmentList, error) {
	var resp service.AssignmentList
	err := c.invoke(ctx, MethodListAssignments, struct{}{}, &resp)
	return resp, err
}

func (c *Client) Status(ctx context.Context) (service.PoolStatus, error) {
	var resp service.PoolStatus
	err := c.invoke(ctx, MethodPoolStatus, struct{}{}, &resp)
	return resp, err
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, FullMethod(method), in, out); err != nil {
		return fromStatus(err)
	}
	return fromStruct(out, resp)
}

// fromStatus maps gateway status codes back onto the service errors.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return wrapSentinel(service.ErrInvalidRequest, st.Message())
	case codes.Unavailable:
		return wrapSentinel(service.ErrUnavailable, st.Message())
	default:
		return err
	}
}

func wrapSentinel(sentinel error, msg string) error {
	if msg == sentinel.Error() {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, strings.TrimPrefix(msg, sentinel.Error()+": "))
}

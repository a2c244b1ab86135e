package cloud

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/boardkeeper/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const defaultCallTimeout = 30 * time.Second

// GRPCClient implements Backend over the cloud gRPC service.
type GRPCClient struct {
	conn        *grpc.ClientConn
	accessToken string
	timeout     time.Duration
}

var _ Backend = (*GRPCClient)(nil)

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (c *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if c.accessToken != "" {
		ctx = withAccessToken(ctx, c.accessToken)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewGRPCClient connects lazily to endpoint. Extra dial options are appended
// after the defaults, so callers can swap the transport.
func NewGRPCClient(endpoint, accessToken string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{accessToken: accessToken, timeout: defaultCallTimeout}
	dial := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(MaxMessageSize),
			grpc.MaxCallSendMsgSize(MaxMessageSize),
		),
	}, opts...)

	conn, err := grpc.NewClient(endpoint, dial...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func call[Resp any](ctx context.Context, c *GRPCClient, method string, req any) (Resp, error) {
	var zero Resp
	in, err := Encode(req)
	if err != nil {
		return zero, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		return zero, mapError(err)
	}
	return Decode[Resp](out)
}

func (c *GRPCClient) Ping(ctx context.Context) error {
	resp, err := call[PingResponse](ctx, c, PingMethod, struct{}{})
	if err != nil {
		return err
	}
	if resp.Status != "OK" {
		return common.Wrapf(common.ErrUnavailable, "cloud status %q", resp.Status)
	}
	return nil
}

func (c *GRPCClient) Push(ctx context.Context, req PushRequest) (PushResponse, error) {
	return call[PushResponse](ctx, c, PushRecordsMethod, req)
}

func (c *GRPCClient) Pull(ctx context.Context, req PullRequest) (PullResponse, error) {
	return call[PullResponse](ctx, c, PullRecordsMethod, req)
}

func (c *GRPCClient) CreateShare(ctx context.Context, req ShareRequest) (ShareInfo, error) {
	return call[ShareInfo](ctx, c, CreateShareMethod, req)
}

func (c *GRPCClient) AcceptShare(ctx context.Context, token string) (ShareInfo, error) {
	return call[ShareInfo](ctx, c, AcceptShareMethod, AcceptRequest{Token: token})
}

// mapError turns gRPC statuses into the error taxonomy. Anything the taxonomy
// has no better name for is a sync failure.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		if errors.Is(err, context.DeadlineExceeded) {
			return common.Wrap(common.ErrUnavailable, err)
		}
		return common.Wrap(common.ErrSyncFailure, err)
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return common.Wrapf(common.ErrUnauthorized, "%s", st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return common.Wrapf(common.ErrUnavailable, "%s", st.Message())
	case codes.NotFound:
		return common.Wrapf(common.ErrNotFound, "%s", st.Message())
	case codes.InvalidArgument:
		return common.Wrapf(common.ErrDataValidation, "%s", st.Message())
	default:
		return common.Wrapf(common.ErrSyncFailure, "rpc error: %s", st.Message())
	}
}

// ToStatus is the server-side inverse of mapError.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, common.ErrUnauthorized), errors.Is(err, common.ErrInvalidToken):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, common.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, common.ErrDataValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

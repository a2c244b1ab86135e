// Package grpc exposes the cloud container over the Cloud gRPC service.
package grpc

import (
	"context"
	"errors"
	"net"

	"github.com/dmitrijs2005/boardkeeper/internal/cloud"
	"github.com/dmitrijs2005/boardkeeper/internal/logging"
	"google.golang.org/grpc"
)

type RecordService interface {
	Push(ctx context.Context, userID string, req cloud.PushRequest) (cloud.PushResponse, error)
	Pull(ctx context.Context, userID string, req cloud.PullRequest) (cloud.PullResponse, error)
}

type ShareService interface {
	Create(ctx context.Context, userID string, req cloud.ShareRequest) (cloud.ShareInfo, error)
	Accept(ctx context.Context, userID, token string) (cloud.ShareInfo, error)
}

type GRPCServer struct {
	address   string
	records   RecordService
	shares    ShareService
	logger    logging.Logger
	jwtSecret []byte
}

var _ cloud.Server = (*GRPCServer)(nil)

func NewGRPCServer(address string, l logging.Logger, rs RecordService, ss ShareService, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   address,
		logger:    l.With("module", "grpc_server"),
		records:   rs,
		shares:    ss,
		jwtSecret: []byte(secretKey),
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve accepts connections on lis until ctx is done, then drains in-flight
// calls.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.accessTokenInterceptor),
		grpc.MaxRecvMsgSize(cloud.MaxMessageSize),
		grpc.MaxSendMsgSize(cloud.MaxMessageSize),
	)
	cloud.RegisterServer(srv, s)

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "stopping gRPC server")
			srv.GracefulStop()
		case <-stopped:
		}
	}()

	s.logger.Info(ctx, "starting gRPC server", "address", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

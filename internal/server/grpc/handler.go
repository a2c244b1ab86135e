package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/boardkeeper/internal/cloud"
	"github.com/dmitrijs2005/boardkeeper/internal/common"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) Ping(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return cloud.Encode(cloud.PingResponse{Status: "OK"})
}

func (s *GRPCServer) PushRecords(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(s, ctx, in, "push", s.records.Push)
}

func (s *GRPCServer) PullRecords(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(s, ctx, in, "pull", s.records.Pull)
}

func (s *GRPCServer) CreateShare(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(s, ctx, in, "create share", s.shares.Create)
}

func (s *GRPCServer) AcceptShare(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(s, ctx, in, "accept share", func(ctx context.Context, userID string, req cloud.AcceptRequest) (cloud.ShareInfo, error) {
		if req.Token == "" {
			return cloud.ShareInfo{}, common.Wrapf(common.ErrDataValidation, "share token is empty")
		}
		return s.shares.Accept(ctx, userID, req.Token)
	})
}

// handle decodes the request, runs fn for the authenticated caller and maps
// failures to gRPC statuses. Only unexpected failures are logged as errors.
func handle[Req, Resp any](s *GRPCServer, ctx context.Context, in *structpb.Struct, op string, fn func(context.Context, string, Req) (Resp, error)) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	req, err := cloud.Decode[Req](in)
	if err != nil {
		return nil, cloud.ToStatus(err)
	}

	resp, err := fn(ctx, userID, req)
	if err != nil {
		if expected(err) {
			s.logger.Info(ctx, op+" rejected", "user", userID, "error", err.Error())
		} else {
			s.logger.Error(ctx, op+" failed", "user", userID, "error", err.Error())
		}
		return nil, cloud.ToStatus(err)
	}
	return cloud.Encode(resp)
}

func expected(err error) bool {
	for _, kind := range []error{
		common.ErrDataValidation,
		common.ErrNotFound,
		common.ErrInvalidToken,
		common.ErrUnauthorized,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

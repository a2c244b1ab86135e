package cloud

import "context"

// Backend is the remote container as seen by the sync coordinator. Every call
// may fail independently; callers decide about retries.
type Backend interface {
	Ping(ctx context.Context) error
	Push(ctx context.Context, req PushRequest) (PushResponse, error)
	Pull(ctx context.Context, req PullRequest) (PullResponse, error)
	CreateShare(ctx context.Context, req ShareRequest) (ShareInfo, error)
	AcceptShare(ctx context.Context, token string) (ShareInfo, error)
}

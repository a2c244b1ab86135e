package cloud

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/dmitrijs2005/boardkeeper/internal/common"
	"github.com/dmitrijs2005/boardkeeper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type fakeServer struct {
	tokens   []string
	lastPush PushRequest
	pullResp PullResponse
	shareErr error
}

func (f *fakeServer) token(ctx context.Context) {
	md, _ := metadata.FromIncomingContext(ctx)
	f.tokens = append(f.tokens, md.Get(common.AccessTokenHeaderName)...)
}

func (f *fakeServer) Ping(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	f.token(ctx)
	return Encode(PingResponse{Status: "OK"})
}

func (f *fakeServer) PushRecords(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := Decode[PushRequest](in)
	if err != nil {
		return nil, ToStatus(err)
	}
	f.lastPush = req
	return Encode(PushResponse{Accepted: len(req.Records), Token: 9})
}

func (f *fakeServer) PullRecords(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return Encode(f.pullResp)
}

func (f *fakeServer) CreateShare(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if f.shareErr != nil {
		return nil, ToStatus(f.shareErr)
	}
	req, err := Decode[ShareRequest](in)
	if err != nil {
		return nil, ToStatus(err)
	}
	return Encode(ShareInfo{ShareID: "sh-1", BoardID: req.BoardID, Title: req.Title, Token: "tok"})
}

func (f *fakeServer) AcceptShare(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.PermissionDenied, "bad share token")
}

func dialFake(t *testing.T, srv Server, token string) *GRPCClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	c, err := NewGRPCClient("passthrough:///bufnet", token,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_PingSendsAccessToken(t *testing.T) {
	f := &fakeServer{}
	c := dialFake(t, f, "A1")

	require.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, []string{"A1"}, f.tokens)
}

func TestClient_PushPullRoundTrip(t *testing.T) {
	rec := models.Record{
		ID:     "i1",
		Entity: models.EntityItem,
		Fields: map[string]any{
			models.FieldBoard: "b1",
			models.FieldNote:  nil,
			models.FieldTags:  []any{"t1", "t2"},
			models.FieldData:  models.AssetRef("k1"),
			models.FieldColor: float64(3),
		},
		Clock: models.Clock{models.FieldBoard: 1_760_000_000_123_456},
	}
	f := &fakeServer{pullResp: PullResponse{Records: []models.Record{rec}, Token: 12, More: true}}
	c := dialFake(t, f, "")
	ctx := context.Background()

	resp, err := c.Push(ctx, PushRequest{Scope: models.ScopePrivate, Records: []models.Record{rec}})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Accepted)
	assert.Equal(t, int64(9), resp.Token)
	require.Len(t, f.lastPush.Records, 1)
	assert.Equal(t, rec, f.lastPush.Records[0])

	pulled, err := c.Pull(ctx, PullRequest{Scope: models.ScopeShared, Since: 3})
	require.NoError(t, err)
	assert.True(t, pulled.More)
	assert.Equal(t, int64(12), pulled.Token)
	require.Len(t, pulled.Records, 1)
	assert.Equal(t, int64(1_760_000_000_123_456), pulled.Records[0].Clock[models.FieldBoard])
	key, ok := models.AssetKey(pulled.Records[0].Fields[models.FieldData])
	require.True(t, ok)
	assert.Equal(t, "k1", key)
}

func TestClient_ShareAndErrors(t *testing.T) {
	f := &fakeServer{}
	c := dialFake(t, f, "A1")
	ctx := context.Background()

	info, err := c.CreateShare(ctx, ShareRequest{BoardID: "b1", Title: "Trip", Thumbnail: []byte{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, "sh-1", info.ShareID)
	assert.Equal(t, "Trip", info.Title)

	f.shareErr = common.Wrapf(common.ErrNotFound, "board b1")
	_, err = c.CreateShare(ctx, ShareRequest{BoardID: "b1"})
	require.ErrorIs(t, err, common.ErrNotFound)

	_, err = c.AcceptShare(ctx, "bogus")
	require.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"unauthenticated", status.Error(codes.Unauthenticated, "x"), common.ErrUnauthorized},
		{"unavailable", status.Error(codes.Unavailable, "x"), common.ErrUnavailable},
		{"deadline", status.Error(codes.DeadlineExceeded, "x"), common.ErrUnavailable},
		{"invalid", status.Error(codes.InvalidArgument, "x"), common.ErrDataValidation},
		{"internal", status.Error(codes.Internal, "x"), common.ErrSyncFailure},
		{"plain", errors.New("boom"), common.ErrSyncFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, mapError(tt.in), tt.want)
		})
	}
	require.NoError(t, mapError(nil))
}

func TestToStatus(t *testing.T) {
	assert.Equal(t, codes.PermissionDenied, status.Code(ToStatus(common.ErrInvalidToken)))
	assert.Equal(t, codes.InvalidArgument, status.Code(ToStatus(common.Wrapf(common.ErrDataValidation, "x"))))
	assert.Equal(t, codes.Internal, status.Code(ToStatus(errors.New("db down"))))

	already := status.Error(codes.Aborted, "keep")
	assert.Equal(t, already, ToStatus(already))
	assert.NoError(t, ToStatus(nil))
}

func TestDecode_Empty(t *testing.T) {
	_, err := Decode[PullRequest](nil)
	require.ErrorIs(t, err, common.ErrDataValidation)
}

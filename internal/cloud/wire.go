package cloud

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/boardkeeper/internal/common"
	"github.com/dmitrijs2005/boardkeeper/internal/models"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type PingResponse struct {
	Status string `json:"status"`
}

// PushRequest uploads snapshots of objects changed locally. Shared-scope
// pushes may only touch boards shared with the caller.
type PushRequest struct {
	Scope   models.Scope    `json:"scope"`
	Records []models.Record `json:"records"`
}

type PushResponse struct {
	Accepted int   `json:"accepted"`
	Token    int64 `json:"token"`
}

// PullRequest asks for every record of scope changed after the change token
// Since. Limit caps the page size; More reports a truncated page.
type PullRequest struct {
	Scope models.Scope `json:"scope"`
	Since int64        `json:"since"`
	Limit int          `json:"limit,omitempty"`
}

type PullResponse struct {
	Records []models.Record `json:"records"`
	Token   int64           `json:"token"`
	More    bool            `json:"more"`
}

// ShareRequest mints or reuses the share record of a board. Title and
// Thumbnail are what invitees see before accepting.
type ShareRequest struct {
	BoardID   string `json:"board_id"`
	Title     string `json:"title"`
	Thumbnail []byte `json:"thumbnail,omitempty"`
}

type AcceptRequest struct {
	Token string `json:"token"`
}

type ShareInfo struct {
	ShareID string `json:"share_id"`
	BoardID string `json:"board_id"`
	OwnerID string `json:"owner_id"`
	Title   string `json:"title"`
	Token   string `json:"token,omitempty"`
}

// Encode converts a message into its wire form.
func Encode(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return structpb.NewStruct(m)
}

// Decode converts a wire message back into T. Record fields come back with
// JSON types, the same ones stores produce.
func Decode[T any](st *structpb.Struct) (T, error) {
	var out T
	if st == nil {
		return out, common.Wrapf(common.ErrDataValidation, "empty message")
	}
	data, err := json.Marshal(st.AsMap())
	if err != nil {
		return out, common.Wrap(common.ErrDataValidation, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, common.Wrap(common.ErrDataValidation, err)
	}
	return out, nil
}

// RecordSize is the size rec takes inside a wire message.
func RecordSize(rec models.Record) (int, error) {
	st, err := Encode(rec)
	if err != nil {
		return 0, err
	}
	return proto.Size(st), nil
}

package models

import (
	"database/sql/driver"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
)

// Record field names.
const (
	FieldName        = "name"
	FieldSortOrder   = "sort_order"
	FieldShareID     = "share_id"
	FieldBoard       = "board_id"
	FieldUUID        = "uuid"
	FieldNote        = "note"
	FieldDisplayType = "display_type"
	FieldContentType = "content_type"
	FieldTags        = "tags"
	FieldData        = "data"
	FieldThumbnail   = "thumbnail"
	FieldColor       = "color"
	FieldCreatedAt   = "created_at"
)

// Clock maps a property name to the unix-microsecond time it was last written.
type Clock map[string]int64

func (c Clock) Clone() Clock {
	out := make(Clock, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Max returns the latest write time in c.
func (c Clock) Max() int64 {
	var m int64
	for _, v := range c {
		if v > m {
			m = v
		}
	}
	return m
}

// Set stamps every field with ts.
func (c Clock) Set(ts int64, fields ...string) {
	for _, f := range fields {
		c[f] = ts
	}
}

// Value stores the clock as a JSON object.
func (c Clock) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]int64(c))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (c *Clock) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*c = Clock{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("clock: unsupported source %T", src)
	}
	m := Clock{}
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("clock: %w", err)
	}
	*c = m
	return nil
}

// Record is the property-level snapshot of one object used for sync.
// Field values are JSON-compatible: string, float64, bool, []any, map or nil.
type Record struct {
	ID      string         `json:"id"`
	Entity  Entity         `json:"entity"`
	Deleted bool           `json:"deleted,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
	Clock   Clock          `json:"clock,omitempty"`
}

func (r Record) Clone() Record {
	out := r
	out.Fields = make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		out.Fields[k] = v
	}
	out.Clock = r.Clock.Clone()
	return out
}

func (r Record) String(field string) (string, bool) {
	s, ok := r.Fields[field].(string)
	return s, ok
}

// OptionalString returns nil when the field is absent, null or empty.
func (r Record) OptionalString(field string) *string {
	s, ok := r.String(field)
	if !ok || s == "" {
		return nil
	}
	return &s
}

func (r Record) Float(field string) (float64, bool) {
	switch v := r.Fields[field].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// Strings decodes a list of strings, accepting []string or []any.
func (r Record) Strings(field string) []string {
	switch v := r.Fields[field].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// StringSet encodes ids as a sorted list so equal sets compare equal.
func StringSet(ids []string) []any {
	s := append([]string(nil), ids...)
	sort.Strings(s)
	out := make([]any, 0, len(s))
	for i, id := range s {
		if i > 0 && s[i-1] == id {
			continue
		}
		out = append(out, id)
	}
	return out
}

const assetKey = "asset"

// EncodeBlob stores bytes inline. A nil blob is encoded as nil.
func EncodeBlob(b []byte) any {
	if b == nil {
		return nil
	}
	return base64.StdEncoding.EncodeToString(b)
}

// AssetRef replaces an inline blob with a reference to external storage.
func AssetRef(key string) any {
	return map[string]any{assetKey: key}
}

// AssetKey reports the external key of v if v is an asset reference.
func AssetKey(v any) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	k, ok := m[assetKey].(string)
	return k, ok
}

// DecodeBlob returns the inline bytes of v. Asset references must be resolved
// before decoding.
func DecodeBlob(v any) ([]byte, error) {
	switch b := v.(type) {
	case nil:
		return nil, nil
	case string:
		return base64.StdEncoding.DecodeString(b)
	case []byte:
		return b, nil
	}
	if k, ok := AssetKey(v); ok {
		return nil, fmt.Errorf("unresolved asset %q", k)
	}
	return nil, fmt.Errorf("unexpected blob type %T", v)
}

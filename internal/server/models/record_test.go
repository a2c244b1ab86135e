package models

import (
	"testing"

	core "github.com/dmitrijs2005/boardkeeper/internal/models"
)

func TestBoardOf(t *testing.T) {
	tests := []struct {
		name string
		rec  core.Record
		want string
	}{
		{"board", core.Record{ID: "b1", Entity: core.EntityBoard}, "b1"},
		{"item", core.Record{ID: "i1", Entity: core.EntityItem, Fields: map[string]any{core.FieldBoard: "b2"}}, "b2"},
		{"tag", core.Record{ID: "t1", Entity: core.EntityTag, Fields: map[string]any{core.FieldBoard: "b3"}}, "b3"},
		{"tombstone", core.Record{ID: "i2", Entity: core.EntityItem, Deleted: true}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BoardOf(tt.rec); got != tt.want {
				t.Fatalf("BoardOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

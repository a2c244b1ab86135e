// Package models holds the entity graph shared by the store, history tracker,
// sync coordinator and ingestion pipeline.
package models

import (
	"time"

	"github.com/dmitrijs2005/boardkeeper/internal/common"
)

// Board groups items and tags. Boards are listed by descending SortOrder.
type Board struct {
	ID        string
	Name      string
	SortOrder float64
	ShareID   string
	Clock     Clock
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsInbox reports whether b is the installation's default board.
func (b Board) IsInbox() bool {
	return b.Name == common.InboxBoardName
}

// TagColor is one of eight fixed tag colors.
type TagColor int

const (
	TagRed TagColor = iota
	TagOrange
	TagYellow
	TagGreen
	TagTeal
	TagBlue
	TagPurple
	TagGray
)

var tagColorNames = [...]string{"red", "orange", "yellow", "green", "teal", "blue", "purple", "gray"}

func (c TagColor) Valid() bool {
	return c >= TagRed && c <= TagGray
}

func (c TagColor) String() string {
	if !c.Valid() {
		return "unknown"
	}
	return tagColorNames[c]
}

// ParseTagColor resolves a color by name.
func ParseTagColor(s string) (TagColor, bool) {
	for i, n := range tagColorNames {
		if n == s {
			return TagColor(i), true
		}
	}
	return 0, false
}

type Tag struct {
	ID        string
	BoardID   string
	Name      string
	Color     TagColor
	SortOrder int
	Clock     Clock
	CreatedAt time.Time
	UpdatedAt time.Time
}

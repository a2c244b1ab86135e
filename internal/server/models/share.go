package models

import "time"

// Share exposes one owner's board to participants. There is at most one
// share per (OwnerID, BoardID).
type Share struct {
	ID        string
	OwnerID   string
	BoardID   string
	Title     string
	Thumbnail []byte
	CreatedAt time.Time
}

package models

import (
	"time"

	core "github.com/dmitrijs2005/boardkeeper/internal/models"
)

// StoredRecord is a record as kept by the cloud container, keyed by
// (OwnerID, Scope, ID). Version comes from a global sequence and doubles as
// the pull change token.
type StoredRecord struct {
	OwnerID   string
	Scope     core.Scope
	BoardID   string
	Version   int64
	Record    core.Record
	UpdatedAt time.Time
}

// BoardOf returns the board a record belongs to: boards own themselves,
// tags and items name theirs in a field.
func BoardOf(r core.Record) string {
	if r.Entity == core.EntityBoard {
		return r.ID
	}
	id, _ := r.String(core.FieldBoard)
	return id
}

// Package merge resolves conflicts between local and remote writes to the
// same object, and replays history batches between stores.
package merge

import (
	"bytes"
	"encoding/json"

	"github.com/dmitrijs2005/boardkeeper/internal/models"
)

// Policy decides the surviving state of one object. local is nil when the
// object is unknown locally. changed reports whether merged differs from local.
type Policy interface {
	Merge(local *models.Record, remote models.Record) (merged models.Record, changed bool)
}

// PropertyLWW keeps, per property, the value with the latest clock. Equal
// clocks fall back to comparing encoded values so every replica picks the
// same winner. Deletion beats any concurrent edit.
type PropertyLWW struct{}

func (PropertyLWW) Merge(local *models.Record, remote models.Record) (models.Record, bool) {
	if local == nil {
		return remote.Clone(), true
	}
	if local.Deleted {
		return local.Clone(), false
	}
	if remote.Deleted {
		out := local.Clone()
		out.Deleted = true
		return out, true
	}

	out := local.Clone()
	changed := false
	for field, rv := range remote.Fields {
		rc := remote.Clock[field]
		lc := local.Clock[field]
		lv, present := local.Fields[field]

		take := !present && lc == 0
		if !take {
			switch {
			case rc > lc:
				take = true
			case rc == lc:
				take = compare(rv, lv) > 0
			}
		}
		if !take {
			continue
		}
		if !present || compare(rv, lv) != 0 || rc != lc {
			changed = true
		}
		out.Fields[field] = rv
		out.Clock[field] = rc
	}
	return out, changed
}

func compare(a, b any) int {
	ea, _ := json.Marshal(a)
	eb, _ := json.Marshal(b)
	return bytes.Compare(ea, eb)
}

// Equal reports whether two values encode identically.
func Equal(a, b any) bool {
	return compare(a, b) == 0
}

package models

import "time"

type DisplayType string

const (
	DisplayImage DisplayType = "image"
	DisplayVideo DisplayType = "video"
	DisplayAudio DisplayType = "audio"
	DisplayNote  DisplayType = "note"
	DisplayLink  DisplayType = "link"
	DisplayFile  DisplayType = "file"
)

func (d DisplayType) Valid() bool {
	switch d {
	case DisplayImage, DisplayVideo, DisplayAudio, DisplayNote, DisplayLink, DisplayFile:
		return true
	}
	return false
}

// Item is a single piece of collected content. DisplayType is fixed at
// creation. Payload bytes are loaded separately through the store.
type Item struct {
	ID          string
	BoardID     string
	UUID        string
	Name        *string
	Note        *string
	DisplayType DisplayType
	ContentType string
	TagIDs      []string
	Clock       Clock
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ItemSpec describes a new item.
type ItemSpec struct {
	Name        *string
	Note        *string
	DisplayType DisplayType
	ContentType string
	Data        []byte
	Thumbnail   []byte
}

// ItemPatch lists fields to change; nil pointers are left untouched and an
// empty Name or Note clears it. Changing BoardID detaches all tags.
type ItemPatch struct {
	Name      *string
	Note      *string
	BoardID   *string
	Thumbnail []byte
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

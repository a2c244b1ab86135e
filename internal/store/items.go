package store

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/boardkeeper/internal/common"
	"github.com/dmitrijs2005/boardkeeper/internal/models"
	"github.com/google/uuid"
)

// CreateItem commits one item with its payloads on boardID.
func (s *Store) CreateItem(ctx context.Context, spec models.ItemSpec, boardID string) (string, error) {
	if !spec.DisplayType.Valid() {
		return "", common.Wrapf(common.ErrDataValidation, "unknown display type %q", spec.DisplayType)
	}

	var id string
	err := s.write(ctx, s.actor, func(ctx context.Context, w *writeTx) error {
		if _, err := w.boards.Get(ctx, boardID); err != nil {
			return err
		}

		it := &models.Item{
			ID:          uuid.NewString(),
			BoardID:     boardID,
			UUID:        uuid.NewString(),
			Name:        emptyToNil(spec.Name),
			Note:        emptyToNil(spec.Note),
			DisplayType: spec.DisplayType,
			ContentType: spec.ContentType,
			Clock:       models.Clock{},
			CreatedAt:   w.now,
			UpdatedAt:   w.now,
		}
		it.Clock.Set(w.ts, models.FieldBoard, models.FieldUUID, models.FieldName, models.FieldNote,
			models.FieldDisplayType, models.FieldContentType, models.FieldTags, models.FieldData, models.FieldThumbnail)

		if err := w.items.Insert(ctx, it); err != nil {
			return err
		}
		if err := w.payloads.SetData(ctx, it.ID, spec.Data); err != nil {
			return err
		}
		if err := w.payloads.SetThumbnail(ctx, it.ID, spec.Thumbnail); err != nil {
			return err
		}
		w.touch(it.ID, models.EntityItem, models.OpInsert)
		id = it.ID
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpdateItem applies patch to item id. Moving an item to another board drops
// its tags, since tags belong to the board.
func (s *Store) UpdateItem(ctx context.Context, id string, patch models.ItemPatch) error {
	return s.write(ctx, s.actor, func(ctx context.Context, w *writeTx) error {
		it, err := w.items.Get(ctx, id)
		if err != nil {
			return err
		}

		dirty := false
		if patch.Name != nil && !sameString(it.Name, patch.Name) {
			it.Name = emptyToNil(patch.Name)
			it.Clock.Set(w.ts, models.FieldName)
			dirty = true
		}
		if patch.Note != nil && !sameString(it.Note, patch.Note) {
			it.Note = emptyToNil(patch.Note)
			it.Clock.Set(w.ts, models.FieldNote)
			dirty = true
		}
		if patch.BoardID != nil && *patch.BoardID != it.BoardID {
			if _, err := w.boards.Get(ctx, *patch.BoardID); err != nil {
				return err
			}
			it.BoardID = *patch.BoardID
			it.Clock.Set(w.ts, models.FieldBoard)
			if len(it.TagIDs) > 0 {
				if err := w.items.SetTags(ctx, id, nil); err != nil {
					return err
				}
				it.Clock.Set(w.ts, models.FieldTags)
			}
			dirty = true
		}
		if patch.Thumbnail != nil {
			if err := w.payloads.SetThumbnail(ctx, id, patch.Thumbnail); err != nil {
				return err
			}
			it.Clock.Set(w.ts, models.FieldThumbnail)
			dirty = true
		}
		if !dirty {
			return nil
		}

		it.UpdatedAt = w.now
		if err := w.items.Update(ctx, it); err != nil {
			return err
		}
		w.touch(id, models.EntityItem, models.OpUpdate)
		return nil
	})
}

// MoveItem reassigns an item to boardID.
func (s *Store) MoveItem(ctx context.Context, id, boardID string) error {
	return s.UpdateItem(ctx, id, models.ItemPatch{BoardID: &boardID})
}

// DeleteItem removes the item and its payloads. Tags stay on the board.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	return s.write(ctx, s.actor, func(ctx context.Context, w *writeTx) error {
		if err := w.items.Delete(ctx, id); err != nil {
			return err
		}
		return s.bury(ctx, w, id, models.EntityItem)
	})
}

func (s *Store) Item(ctx context.Context, id string) (*models.Item, error) {
	return s.read().items.Get(ctx, id)
}

// Items lists a board's items, newest first.
func (s *Store) Items(ctx context.Context, boardID string) ([]models.Item, error) {
	if _, err := s.read().boards.Get(ctx, boardID); err != nil {
		return nil, err
	}
	return s.read().items.ListByBoard(ctx, boardID)
}

// ItemData returns the primary payload, or nil when the item has none.
func (s *Store) ItemData(ctx context.Context, id string) ([]byte, error) {
	r := s.read()
	if _, err := r.items.Get(ctx, id); err != nil {
		return nil, err
	}
	data, err := r.payloads.Data(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("item %s data: %w", id, err)
	}
	return data, nil
}

// Thumbnail returns the preview image, or nil when none was produced.
func (s *Store) Thumbnail(ctx context.Context, id string) ([]byte, error) {
	r := s.read()
	if _, err := r.items.Get(ctx, id); err != nil {
		return nil, err
	}
	return r.payloads.Thumbnail(ctx, id)
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}

func sameString(a, b *string) bool {
	a, b = emptyToNil(a), emptyToNil(b)
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

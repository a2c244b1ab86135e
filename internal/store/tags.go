package store

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/boardkeeper/internal/common"
	"github.com/dmitrijs2005/boardkeeper/internal/models"
	"github.com/google/uuid"
)

func (s *Store) CreateTag(ctx context.Context, boardID, name string, color models.TagColor) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", common.Wrapf(common.ErrDataValidation, "tag name is empty")
	}
	if !color.Valid() {
		return "", common.Wrapf(common.ErrDataValidation, "unknown tag color %d", color)
	}

	var id string
	err := s.write(ctx, s.actor, func(ctx context.Context, w *writeTx) error {
		if _, err := w.boards.Get(ctx, boardID); err != nil {
			return err
		}
		order, err := w.tags.NextSortOrder(ctx, boardID)
		if err != nil {
			return err
		}
		t := &models.Tag{
			ID:        uuid.NewString(),
			BoardID:   boardID,
			Name:      name,
			Color:     color,
			SortOrder: order,
			Clock:     models.Clock{},
			CreatedAt: w.now,
			UpdatedAt: w.now,
		}
		t.Clock.Set(w.ts, models.FieldBoard, models.FieldName, models.FieldColor, models.FieldSortOrder)
		if err := w.tags.Insert(ctx, t); err != nil {
			return err
		}
		w.touch(t.ID, models.EntityTag, models.OpInsert)
		id = t.ID
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// DeleteTag removes a tag from its board and from every item carrying it.
func (s *Store) DeleteTag(ctx context.Context, id string) error {
	return s.write(ctx, s.actor, func(ctx context.Context, w *writeTx) error {
		tagged, err := w.items.ItemIDsByTag(ctx, id)
		if err != nil {
			return err
		}
		if err := w.tags.Delete(ctx, id); err != nil {
			return err
		}
		for _, itemID := range tagged {
			if err := s.stampTags(ctx, w, itemID); err != nil {
				return err
			}
		}
		return s.bury(ctx, w, id, models.EntityTag)
	})
}

// Tags lists a board's tags in their display order.
func (s *Store) Tags(ctx context.Context, boardID string) ([]models.Tag, error) {
	return s.read().tags.ListByBoard(ctx, boardID)
}

func (s *Store) AddTag(ctx context.Context, itemID, tagID string) error {
	return s.write(ctx, s.actor, func(ctx context.Context, w *writeTx) error {
		if err := checkSameBoard(ctx, w, itemID, tagID); err != nil {
			return err
		}
		added, err := w.items.AddTag(ctx, itemID, tagID)
		if err != nil || !added {
			return err
		}
		return s.stampTags(ctx, w, itemID)
	})
}

func (s *Store) RemoveTag(ctx context.Context, itemID, tagID string) error {
	return s.write(ctx, s.actor, func(ctx context.Context, w *writeTx) error {
		if err := checkSameBoard(ctx, w, itemID, tagID); err != nil {
			return err
		}
		removed, err := w.items.RemoveTag(ctx, itemID, tagID)
		if err != nil || !removed {
			return err
		}
		return s.stampTags(ctx, w, itemID)
	})
}

// ToggleTag attaches the tag when absent and detaches it when present.
// It reports whether the tag is attached afterwards.
func (s *Store) ToggleTag(ctx context.Context, itemID, tagID string) (bool, error) {
	var attached bool
	err := s.write(ctx, s.actor, func(ctx context.Context, w *writeTx) error {
		if err := checkSameBoard(ctx, w, itemID, tagID); err != nil {
			return err
		}
		removed, err := w.items.RemoveTag(ctx, itemID, tagID)
		if err != nil {
			return err
		}
		if !removed {
			if _, err := w.items.AddTag(ctx, itemID, tagID); err != nil {
				return err
			}
			attached = true
		}
		return s.stampTags(ctx, w, itemID)
	})
	return attached, err
}

// ReorderTags assigns sort orders following orderedIDs. Tags of the board
// that are not listed keep their relative order after the listed ones.
func (s *Store) ReorderTags(ctx context.Context, boardID string, orderedIDs []string) error {
	return s.write(ctx, s.actor, func(ctx context.Context, w *writeTx) error {
		current, err := w.tags.ListByBoard(ctx, boardID)
		if err != nil {
			return err
		}
		byID := make(map[string]*models.Tag, len(current))
		for i := range current {
			byID[current[i].ID] = &current[i]
		}

		order := make([]*models.Tag, 0, len(current))
		listed := make(map[string]bool, len(orderedIDs))
		for _, id := range orderedIDs {
			t, ok := byID[id]
			if !ok {
				return common.Wrapf(common.ErrDataValidation, "tag %s is not on board %s", id, boardID)
			}
			if listed[id] {
				return common.Wrapf(common.ErrDataValidation, "tag %s listed twice", id)
			}
			listed[id] = true
			order = append(order, t)
		}
		for i := range current {
			if !listed[current[i].ID] {
				order = append(order, &current[i])
			}
		}

		for pos, t := range order {
			if t.SortOrder == pos {
				continue
			}
			t.SortOrder = pos
			t.Clock.Set(w.ts, models.FieldSortOrder)
			t.UpdatedAt = w.now
			if err := w.tags.Update(ctx, t); err != nil {
				return err
			}
			w.touch(t.ID, models.EntityTag, models.OpUpdate)
		}
		return nil
	})
}

func checkSameBoard(ctx context.Context, w *writeTx, itemID, tagID string) error {
	it, err := w.items.Get(ctx, itemID)
	if err != nil {
		return err
	}
	t, err := w.tags.Get(ctx, tagID)
	if err != nil {
		return err
	}
	if it.BoardID != t.BoardID {
		return common.Wrapf(common.ErrDataValidation, "tag %s belongs to another board", tagID)
	}
	return nil
}

// stampTags marks the item's tag set as written by this transaction.
func (s *Store) stampTags(ctx context.Context, w *writeTx, itemID string) error {
	it, err := w.items.Get(ctx, itemID)
	if err != nil {
		return err
	}
	it.Clock.Set(w.ts, models.FieldTags)
	it.UpdatedAt = w.now
	if err := w.items.Update(ctx, it); err != nil {
		return err
	}
	w.touch(itemID, models.EntityItem, models.OpUpdate)
	return nil
}

package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/boardkeeper/internal/common"
	"github.com/dmitrijs2005/boardkeeper/internal/models"
	"github.com/google/uuid"
)

// CreateBoard inserts a board after checking that no board has the same name.
// The check and the insert share one transaction but are not serialized
// against other devices, so two replicas can still both create a name.
func (s *Store) CreateBoard(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", common.Wrapf(common.ErrDataValidation, "board name is empty")
	}

	var id string
	err := s.write(ctx, s.actor, func(ctx context.Context, w *writeTx) error {
		existing, err := w.boards.FindByName(ctx, name)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return common.Wrapf(common.ErrNameConflict, "board %q already exists", name)
		}
		id, err = s.insertBoard(ctx, w, name)
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) insertBoard(ctx context.Context, w *writeTx, name string) (string, error) {
	top, err := w.boards.MaxSortOrder(ctx)
	if err != nil {
		return "", err
	}
	b := &models.Board{
		ID:        uuid.NewString(),
		Name:      name,
		SortOrder: top + 1,
		Clock:     models.Clock{},
		CreatedAt: w.now,
		UpdatedAt: w.now,
	}
	b.Clock.Set(w.ts, models.FieldName, models.FieldSortOrder, models.FieldShareID)
	if err := w.boards.Insert(ctx, b); err != nil {
		return "", err
	}
	w.touch(b.ID, models.EntityBoard, models.OpInsert)
	return b.ID, nil
}

// EnsureInbox returns the Inbox board, creating it when no board carries the
// name. Duplicates synced in from other devices are left as they are.
func (s *Store) EnsureInbox(ctx context.Context) (string, error) {
	var id string
	err := s.write(ctx, s.actor, func(ctx context.Context, w *writeTx) error {
		existing, err := w.boards.FindByName(ctx, common.InboxBoardName)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			id = existing[0].ID
			return nil
		}
		id, err = s.insertBoard(ctx, w, common.InboxBoardName)
		return err
	})
	return id, err
}

func (s *Store) RenameBoard(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return common.Wrapf(common.ErrDataValidation, "board name is empty")
	}
	return s.write(ctx, s.actor, func(ctx context.Context, w *writeTx) error {
		b, err := w.boards.Get(ctx, id)
		if err != nil {
			return err
		}
		if b.Name == name {
			return nil
		}
		if b.IsInbox() {
			return common.Wrapf(common.ErrDataValidation, "the inbox cannot be renamed")
		}
		existing, err := w.boards.FindByName(ctx, name)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return common.Wrapf(common.ErrNameConflict, "board %q already exists", name)
		}
		b.Name = name
		b.Clock.Set(w.ts, models.FieldName)
		b.UpdatedAt = w.now
		if err := w.boards.Update(ctx, b); err != nil {
			return err
		}
		w.touch(id, models.EntityBoard, models.OpUpdate)
		return nil
	})
}

// SetBoardShare links a board to its share record.
func (s *Store) SetBoardShare(ctx context.Context, id, shareID string) error {
	return s.write(ctx, s.actor, func(ctx context.Context, w *writeTx) error {
		b, err := w.boards.Get(ctx, id)
		if err != nil {
			return err
		}
		if b.ShareID == shareID {
			return nil
		}
		b.ShareID = shareID
		b.Clock.Set(w.ts, models.FieldShareID)
		b.UpdatedAt = w.now
		if err := w.boards.Update(ctx, b); err != nil {
			return err
		}
		w.touch(id, models.EntityBoard, models.OpUpdate)
		return nil
	})
}

// DeleteBoard removes a board with its items, payloads and tags.
func (s *Store) DeleteBoard(ctx context.Context, id string) error {
	return s.write(ctx, s.actor, func(ctx context.Context, w *writeTx) error {
		b, err := w.boards.Get(ctx, id)
		if err != nil {
			return err
		}
		if b.IsInbox() {
			return common.Wrapf(common.ErrDataValidation, "the inbox cannot be deleted")
		}
		return s.deleteBoard(ctx, w, id)
	})
}

func (s *Store) deleteBoard(ctx context.Context, w *writeTx, id string) error {
	itemIDs, err := w.items.IDsByBoard(ctx, id)
	if err != nil {
		return err
	}
	boardTags, err := w.tags.ListByBoard(ctx, id)
	if err != nil {
		return err
	}
	if err := w.boards.Delete(ctx, id); err != nil {
		return err
	}

	for _, itemID := range itemIDs {
		if err := s.bury(ctx, w, itemID, models.EntityItem); err != nil {
			return err
		}
	}
	for _, t := range boardTags {
		if err := s.bury(ctx, w, t.ID, models.EntityTag); err != nil {
			return err
		}
	}
	if err := s.bury(ctx, w, id, models.EntityBoard); err != nil {
		return err
	}

	def, err := w.meta.Get(ctx, defaultBoardKey)
	if err != nil {
		return err
	}
	if string(def) == id {
		return w.meta.Delete(ctx, defaultBoardKey)
	}
	return nil
}

// bury leaves a tombstone for a removed object and records the deletion.
func (s *Store) bury(ctx context.Context, w *writeTx, id string, entity models.Entity) error {
	if err := w.tombstones.Put(ctx, id, entity, w.ts); err != nil {
		return err
	}
	w.touch(id, entity, models.OpDelete)
	return nil
}

func (s *Store) Board(ctx context.Context, id string) (*models.Board, error) {
	return s.read().boards.Get(ctx, id)
}

// BoardByName returns the oldest board with the given name.
func (s *Store) BoardByName(ctx context.Context, name string) (*models.Board, error) {
	found, err := s.read().boards.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("board %q: %w", name, common.ErrNotFound)
	}
	return &found[0], nil
}

// Boards lists boards by descending sort order.
func (s *Store) Boards(ctx context.Context) ([]models.Board, error) {
	return s.read().boards.List(ctx)
}

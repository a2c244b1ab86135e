package store

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/boardkeeper/internal/models"
)

// ReadContext is the long-lived view observers read from. It caches loaded
// boards and items and is refreshed from history batches through
// MergeRecords, so it satisfies merge.HistoryMergeable.
type ReadContext struct {
	store *Store

	mu         sync.RWMutex
	boards     map[string]models.Board
	items      map[string]models.Item
	generation uint64
}

func (s *Store) NewReadContext() *ReadContext {
	return &ReadContext{
		store:  s,
		boards: make(map[string]models.Board),
		items:  make(map[string]models.Item),
	}
}

func (rc *ReadContext) Board(ctx context.Context, id string) (models.Board, error) {
	rc.mu.RLock()
	b, ok := rc.boards[id]
	rc.mu.RUnlock()
	if ok {
		return b, nil
	}

	loaded, err := rc.store.Board(ctx, id)
	if err != nil {
		return models.Board{}, err
	}
	rc.mu.Lock()
	rc.boards[id] = *loaded
	rc.mu.Unlock()
	return *loaded, nil
}

func (rc *ReadContext) Item(ctx context.Context, id string) (models.Item, error) {
	rc.mu.RLock()
	it, ok := rc.items[id]
	rc.mu.RUnlock()
	if ok {
		return it, nil
	}

	loaded, err := rc.store.Item(ctx, id)
	if err != nil {
		return models.Item{}, err
	}
	rc.mu.Lock()
	rc.items[id] = *loaded
	rc.mu.Unlock()
	return *loaded, nil
}

// Generation increases every time a merge touched the context.
func (rc *ReadContext) Generation() uint64 {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.generation
}

// MergeRecords evicts deleted objects and reloads cached ones that changed.
// Objects that were never read stay unloaded.
func (rc *ReadContext) MergeRecords(ctx context.Context, records []models.Record) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	for _, rec := range records {
		switch rec.Entity {
		case models.EntityBoard:
			if _, cached := rc.boards[rec.ID]; !cached {
				continue
			}
			delete(rc.boards, rec.ID)
			if rec.Deleted {
				continue
			}
			b, err := rc.store.Board(ctx, rec.ID)
			if err != nil {
				if isNotFound(err) {
					continue
				}
				return err
			}
			rc.boards[rec.ID] = *b
		case models.EntityItem:
			if _, cached := rc.items[rec.ID]; !cached {
				continue
			}
			delete(rc.items, rec.ID)
			if rec.Deleted {
				continue
			}
			it, err := rc.store.Item(ctx, rec.ID)
			if err != nil {
				if isNotFound(err) {
					continue
				}
				return err
			}
			rc.items[rec.ID] = *it
		}
	}
	rc.generation++
	return nil
}

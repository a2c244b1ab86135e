// Package history turns store change notifications into an ordered stream of
// remote transactions. Each store keeps a cursor per actor; the tracker reads
// everything after it that another actor wrote, publishes the batch to its
// subscribers and only then advances the cursor.
package history

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/boardkeeper/internal/common"
	"github.com/dmitrijs2005/boardkeeper/internal/logging"
	"github.com/dmitrijs2005/boardkeeper/internal/models"
)

// Source is a physical store the tracker can read history from.
type Source interface {
	ID() string
	TransactionsAfter(ctx context.Context, after int64, exclude models.Actor) ([]models.Transaction, error)
	Cursor(ctx context.Context, actor models.Actor) (int64, error)
	SetCursor(ctx context.Context, actor models.Actor, ts int64) error
}

// Subscriber receives every published batch. A returned error keeps the
// cursor where it was, so the same batch is delivered again later.
type Subscriber func(ctx context.Context, src Source, batch []models.Transaction) error

type Tracker struct {
	actor  models.Actor
	logger logging.Logger

	// lane serializes history fetches.
	lane sync.Mutex

	mu      sync.Mutex
	sources map[string]Source
	subs    map[int]Subscriber
	nextSub int
	queue   []string
	queued  map[string]bool
	wake    chan struct{}
}

func NewTracker(actor models.Actor, logger logging.Logger) *Tracker {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Tracker{
		actor:   actor,
		logger:  logger.With("module", "history", "actor", string(actor)),
		sources: make(map[string]Source),
		subs:    make(map[int]Subscriber),
		queued:  make(map[string]bool),
		wake:    make(chan struct{}, 1),
	}
}

func (t *Tracker) AddSource(src Source) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sources[src.ID()] = src
}

// Subscribe registers fn and returns a function that removes it.
func (t *Tracker) Subscribe(fn Subscriber) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subs, id)
	}
}

// Notify queues a fetch for storeID. Notifications for a store that is
// already queued collapse into one, since a fetch always reads everything
// after the cursor.
func (t *Tracker) Notify(storeID string) {
	t.mu.Lock()
	if !t.queued[storeID] {
		t.queued[storeID] = true
		t.queue = append(t.queue, storeID)
	}
	t.mu.Unlock()

	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// Run drains notifications until ctx is done. Failures are logged and retried
// on the next notification for the same store.
func (t *Tracker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.wake:
		}

		for {
			id, ok := t.next()
			if !ok {
				break
			}
			if err := t.Sync(ctx, id); err != nil {
				t.logger.Warn(ctx, "history fetch failed", "store", id, "error", err)
			}
		}
	}
}

func (t *Tracker) next() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.queue) == 0 {
		return "", false
	}
	id := t.queue[0]
	t.queue = t.queue[1:]
	delete(t.queued, id)
	return id, true
}

// Sync fetches and publishes the pending remote transactions of one store.
func (t *Tracker) Sync(ctx context.Context, storeID string) error {
	t.lane.Lock()
	defer t.lane.Unlock()

	t.mu.Lock()
	src, ok := t.sources[storeID]
	subs := make([]Subscriber, 0, len(t.subs))
	for i := 0; i < t.nextSub; i++ {
		if fn, ok := t.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	t.mu.Unlock()
	if !ok {
		return common.Wrapf(common.ErrNotFound, "store %s is not tracked", storeID)
	}

	cursor, err := src.Cursor(ctx, t.actor)
	if err != nil {
		return fmt.Errorf("read cursor: %w", err)
	}
	batch, err := src.TransactionsAfter(ctx, cursor, t.actor)
	if err != nil {
		return fmt.Errorf("fetch history after %d: %w", cursor, err)
	}
	if len(batch) == 0 {
		return nil
	}

	for _, fn := range subs {
		if err := fn(ctx, src, batch); err != nil {
			return fmt.Errorf("publish batch: %w", err)
		}
	}

	last := batch[len(batch)-1].Timestamp
	if err := src.SetCursor(ctx, t.actor, last); err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}
	t.logger.Debug(ctx, "history batch published", "store", storeID, "transactions", len(batch), "cursor", last)
	return nil
}

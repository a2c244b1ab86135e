// Package syncer binds the private and shared physical stores into one
// logical object space and moves their changes to and from the cloud.
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/boardkeeper/internal/cloud"
	"github.com/dmitrijs2005/boardkeeper/internal/common"
	"github.com/dmitrijs2005/boardkeeper/internal/history"
	"github.com/dmitrijs2005/boardkeeper/internal/logging"
	"github.com/dmitrijs2005/boardkeeper/internal/merge"
	"github.com/dmitrijs2005/boardkeeper/internal/models"
	"golang.org/x/sync/singleflight"
)

// LocalStore is the part of a physical store the coordinator drives.
type LocalStore interface {
	history.Source
	merge.ObjectProviding
	merge.HistoryMergeable

	Descriptor() models.Descriptor
	PushCursor(ctx context.Context) (int64, error)
	SetPushCursor(ctx context.Context, ts int64) error
	ChangeToken(ctx context.Context) (int64, error)
	SetChangeToken(ctx context.Context, token int64) error
	MergeAvailable(ctx context.Context, records []models.Record) ([]models.Record, error)

	Board(ctx context.Context, id string) (*models.Board, error)
	Items(ctx context.Context, boardID string) ([]models.Item, error)
	Thumbnail(ctx context.Context, itemID string) ([]byte, error)
	SetBoardShare(ctx context.Context, id, shareID string) error
	ShareToken(ctx context.Context, boardID string) (string, error)
	SetShareToken(ctx context.Context, boardID, token string) error
}

// AssetStore holds payload bytes outside of records.
type AssetStore interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

type Options struct {
	// Backend is nil when the installation runs without a cloud account.
	Backend cloud.Backend
	// Assets is nil when payloads travel inline.
	Assets   AssetStore
	Tracker  *history.Tracker
	Logger   logging.Logger
	Interval time.Duration
	PageSize int
}

type Coordinator struct {
	backend   cloud.Backend
	assets    AssetStore
	tracker   *history.Tracker
	logger    logging.Logger
	interval  time.Duration
	pageSize  int
	pageBytes int

	mu     sync.RWMutex
	stores map[models.Scope]LocalStore
	ids    map[string]models.Scope

	transfer sync.Mutex
	shares   singleflight.Group
}

func New(opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 200
	}
	return &Coordinator{
		backend:   opts.Backend,
		assets:    opts.Assets,
		tracker:   opts.Tracker,
		logger:    opts.Logger.With("module", "syncer"),
		interval:  opts.Interval,
		pageSize:  opts.PageSize,
		pageBytes: cloud.PageBytes,
		stores:    make(map[models.Scope]LocalStore),
	}
}

// Load associates each store with the scope named by its descriptor. Store
// identifiers are cached once both scopes are loaded.
func (c *Coordinator) Load(stores ...LocalStore) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range stores {
		d := s.Descriptor()
		if !d.Scope.Valid() {
			return common.Wrapf(common.ErrDataValidation, "store %s has no valid scope", d.StoreID)
		}
		if prev, ok := c.stores[d.Scope]; ok && prev.ID() != d.StoreID {
			return common.Wrapf(common.ErrDataValidation, "scope %s is already bound to store %s", d.Scope, prev.ID())
		}
		c.stores[d.Scope] = s
		if c.tracker != nil {
			c.tracker.AddSource(s)
		}
	}

	if len(c.stores) == 2 {
		c.ids = make(map[string]models.Scope, 2)
		for scope, s := range c.stores {
			c.ids[s.ID()] = scope
		}
	}
	return nil
}

// Loaded reports whether both scopes have a store.
func (c *Coordinator) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ids != nil
}

func (c *Coordinator) Store(scope models.Scope) (LocalStore, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.stores[scope]
	if !ok {
		return nil, common.Wrapf(common.ErrNotFound, "no %s store loaded", scope)
	}
	return s, nil
}

// ScopeOf resolves a store identifier to the scope it serves.
func (c *Coordinator) ScopeOf(storeID string) (models.Scope, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.ids != nil {
		scope, ok := c.ids[storeID]
		return scope, ok
	}
	for scope, s := range c.stores {
		if s.ID() == storeID {
			return scope, true
		}
	}
	return "", false
}

// HandleRemoteChange routes a storage change notification to the history
// tracker of the store it originated from.
func (c *Coordinator) HandleRemoteChange(ctx context.Context, storeID string) error {
	scope, ok := c.ScopeOf(storeID)
	if !ok {
		c.logger.Warn(ctx, "change notification from unknown store", "store", storeID)
		return common.Wrapf(common.ErrNotFound, "store %s is not loaded", storeID)
	}
	c.logger.Debug(ctx, "remote change", "store", storeID, "scope", string(scope))
	if c.tracker != nil {
		c.tracker.Notify(storeID)
	}
	return nil
}

func (c *Coordinator) loaded() []LocalStore {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]LocalStore, 0, len(c.stores))
	for _, scope := range []models.Scope{models.ScopePrivate, models.ScopeShared} {
		if s, ok := c.stores[scope]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Run pushes and pulls every interval until ctx is done. Failed rounds are
// logged and retried on the next tick.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if err := c.SyncOnce(ctx); err != nil {
			c.logger.Warn(ctx, "sync round failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SyncOnce pushes local changes, then pulls remote ones.
func (c *Coordinator) SyncOnce(ctx context.Context) error {
	if err := c.Push(ctx); err != nil {
		return err
	}
	return c.Pull(ctx)
}

// Online reports whether a cloud backend is configured.
func (c *Coordinator) Online() bool { return c.backend != nil }

func (c *Coordinator) requireBackend() error {
	if c.backend == nil {
		return common.Wrapf(common.ErrUnavailable, "cloud is not configured")
	}
	return nil
}

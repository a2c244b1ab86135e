// Package store is the local object store: a SQLite-backed entity graph of
// boards, items, tags and payloads with transactional writes. Every write
// transaction is tagged with an actor and appended to a history log that the
// history tracker reads.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/boardkeeper/internal/common"
	"github.com/dmitrijs2005/boardkeeper/internal/dbx"
	"github.com/dmitrijs2005/boardkeeper/internal/logging"
	"github.com/dmitrijs2005/boardkeeper/internal/merge"
	"github.com/dmitrijs2005/boardkeeper/internal/models"
	"github.com/dmitrijs2005/boardkeeper/internal/store/repositories/boards"
	"github.com/dmitrijs2005/boardkeeper/internal/store/repositories/history"
	"github.com/dmitrijs2005/boardkeeper/internal/store/repositories/items"
	"github.com/dmitrijs2005/boardkeeper/internal/store/repositories/metadata"
	"github.com/dmitrijs2005/boardkeeper/internal/store/repositories/payloads"
	"github.com/dmitrijs2005/boardkeeper/internal/store/repositories/tags"
	"github.com/dmitrijs2005/boardkeeper/internal/store/repositories/tombstones"
	"github.com/google/uuid"
)

const storeIDKey = "store.id"

// Options configures one physical store. Actor is the identity stamped on
// every local write; each embedding process supplies its own.
type Options struct {
	Path   string
	Actor  models.Actor
	Scope  models.Scope
	Policy merge.Policy
	Now    func() time.Time
	Logger logging.Logger
}

type Store struct {
	db     *sql.DB
	id     string
	path   string
	actor  models.Actor
	scope  models.Scope
	policy merge.Policy
	now    func() time.Time
	logger logging.Logger

	mu    sync.RWMutex
	hooks []func(models.Descriptor)
}

func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, common.Wrapf(common.ErrDataValidation, "store path is empty")
	}
	if opts.Actor == "" {
		return nil, common.Wrapf(common.ErrDataValidation, "store actor is empty")
	}
	if opts.Scope == "" {
		opts.Scope = models.ScopePrivate
	}
	if !opts.Scope.Valid() {
		return nil, common.Wrapf(common.ErrDataValidation, "unknown scope %q", opts.Scope)
	}
	if opts.Policy == nil {
		opts.Policy = merge.PropertyLWW{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	db, err := InitDatabase(ctx, opts.Path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", opts.Path, err)
	}

	s := &Store{
		db:     db,
		path:   opts.Path,
		actor:  opts.Actor,
		scope:  opts.Scope,
		policy: opts.Policy,
		now:    opts.Now,
		logger: opts.Logger.With("module", "store", "scope", string(opts.Scope)),
	}

	if s.id, err = s.loadID(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.logger = s.logger.With("store", s.id)
	return s, nil
}

func (s *Store) loadID(ctx context.Context) (string, error) {
	meta := metadata.NewSQLiteRepository(s.db)
	raw, err := meta.Get(ctx, storeIDKey)
	if err != nil {
		return "", err
	}
	if raw != nil {
		return string(raw), nil
	}
	id := uuid.NewString()
	if err := meta.Set(ctx, storeIDKey, []byte(id)); err != nil {
		return "", err
	}
	return id, nil
}

// ID is the store-scoped unique identifier used to route change notifications.
func (s *Store) ID() string { return s.id }

func (s *Store) Actor() models.Actor { return s.actor }

func (s *Store) Scope() models.Scope { return s.scope }

func (s *Store) Path() string { return s.path }

func (s *Store) Descriptor() models.Descriptor {
	return models.Descriptor{StoreID: s.id, Path: s.path, Scope: s.scope}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// OnCommit registers fn to run after every committed write that changed
// something. fn runs on the writer's goroutine and must not block.
func (s *Store) OnCommit(fn func(models.Descriptor)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

func (s *Store) notify() {
	s.mu.RLock()
	hooks := make([]func(models.Descriptor), len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.RUnlock()

	d := s.Descriptor()
	for _, fn := range hooks {
		fn(d)
	}
}

type repos struct {
	boards     boards.Repository
	items      items.Repository
	tags       tags.Repository
	payloads   payloads.Repository
	history    history.Repository
	tombstones tombstones.Repository
	meta       metadata.Repository
}

func newRepos(db dbx.DBTX) repos {
	return repos{
		boards:     boards.NewSQLiteRepository(db),
		items:      items.NewSQLiteRepository(db),
		tags:       tags.NewSQLiteRepository(db),
		payloads:   payloads.NewSQLiteRepository(db),
		history:    history.NewSQLiteRepository(db),
		tombstones: tombstones.NewSQLiteRepository(db),
		meta:       metadata.NewSQLiteRepository(db),
	}
}

func (s *Store) read() repos {
	return newRepos(s.db)
}

// writeTx is the scope of one write transaction. ts is the transaction
// timestamp, also used as the clock of every property it writes.
type writeTx struct {
	repos
	ts      int64
	now     time.Time
	author  models.Actor
	changes []models.Change
}

// touch records that id changed. A later delete overrides earlier ops and an
// insert stays an insert when updated again.
func (w *writeTx) touch(id string, entity models.Entity, op models.Op) {
	for i := range w.changes {
		if w.changes[i].ObjectID != id {
			continue
		}
		if op == models.OpDelete || w.changes[i].Op == models.OpUpdate {
			w.changes[i].Op = op
		}
		return
	}
	w.changes = append(w.changes, models.Change{ObjectID: id, Entity: entity, Op: op})
}

// write runs fn in one immediate transaction authored by author. Either all
// of fn's writes and the history entry commit, or none do.
func (s *Store) write(ctx context.Context, author models.Actor, fn func(ctx context.Context, w *writeTx) error) error {
	changed := false
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		w := &writeTx{repos: newRepos(tx), author: author}

		last, err := w.history.LastTimestamp(ctx)
		if err != nil {
			return err
		}
		w.ts = s.now().UnixMicro()
		if w.ts <= last {
			w.ts = last + 1
		}
		w.now = time.UnixMicro(w.ts)

		if err := fn(ctx, w); err != nil {
			return err
		}
		if len(w.changes) == 0 {
			return nil
		}
		if _, err := w.history.Append(ctx, author, w.ts, w.changes); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return err
	}
	if changed {
		s.notify()
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}

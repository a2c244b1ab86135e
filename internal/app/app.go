// Package app wires the stores, history tracker, sync coordinator and
// ingestion pipeline of one client process.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/boardkeeper/internal/blobstore"
	"github.com/dmitrijs2005/boardkeeper/internal/cloud"
	"github.com/dmitrijs2005/boardkeeper/internal/config"
	"github.com/dmitrijs2005/boardkeeper/internal/filex"
	"github.com/dmitrijs2005/boardkeeper/internal/history"
	"github.com/dmitrijs2005/boardkeeper/internal/ingest"
	"github.com/dmitrijs2005/boardkeeper/internal/linkmeta"
	"github.com/dmitrijs2005/boardkeeper/internal/logging"
	"github.com/dmitrijs2005/boardkeeper/internal/merge"
	"github.com/dmitrijs2005/boardkeeper/internal/models"
	"github.com/dmitrijs2005/boardkeeper/internal/store"
	"github.com/dmitrijs2005/boardkeeper/internal/syncer"
	"github.com/dmitrijs2005/boardkeeper/internal/thumbnail"
)

const (
	historyRetention = 7 * 24 * time.Hour
	purgeInterval    = time.Hour
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	logCloser io.Closer

	stores  map[models.Scope]*store.Store
	views   map[string]*store.ReadContext
	tracker *history.Tracker
	watcher *history.Watcher
	coord   *syncer.Coordinator
	client  *cloud.GRPCClient
	ingest  *ingest.Pipeline

	now func() time.Time
}

// New opens both stores and builds the component graph. The cloud client
// and the asset store are only created when configured.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, closer := logging.New(cfg.Log.Options())
	app, err := newApp(ctx, cfg, logger.With("actor", cfg.Actor))
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	app.logCloser = closer
	return app, nil
}

func newApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dataDir, err := filex.EnsureDir(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	cfg.DataDir = dataDir

	app := &App{
		config:    cfg,
		logger:    logger,
		logCloser: io.NopCloser(nil),
		stores:    make(map[models.Scope]*store.Store, 2),
		views:     make(map[string]*store.ReadContext, 2),
		now:       time.Now,
	}
	actor := models.Actor(cfg.Actor)

	for _, scope := range []models.Scope{models.ScopePrivate, models.ScopeShared} {
		s, err := store.Open(ctx, store.Options{
			Path:   cfg.StorePath(scope),
			Actor:  actor,
			Scope:  scope,
			Logger: logger,
		})
		if err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("open %s store: %w", scope, err)
		}
		app.stores[scope] = s
		app.views[s.ID()] = s.NewReadContext()
	}

	app.tracker = history.NewTracker(actor, logger)
	app.tracker.Subscribe(app.refreshView)

	opts := syncer.Options{
		Tracker:  app.tracker,
		Logger:   logger,
		Interval: cfg.SyncInterval,
	}
	if cfg.CloudEndpoint != "" {
		client, err := cloud.NewGRPCClient(cfg.CloudEndpoint, cfg.AccessToken)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.client = client
		opts.Backend = client
	}
	if s3cfg := cfg.S3.Blobstore(); s3cfg.Enabled() {
		assets, err := blobstore.New(ctx, s3cfg)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		opts.Assets = assets
	}
	app.coord = syncer.New(opts)
	if err := app.coord.Load(app.stores[models.ScopePrivate], app.stores[models.ScopeShared]); err != nil {
		_ = app.Close()
		return nil, err
	}

	links, err := linkmeta.NewCache(linkmeta.NewHTTPFetcher(nil), cfg.Ingest.LinkCacheSize)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.ingest = ingest.New(app.stores[models.ScopePrivate], thumbnail.ImageGenerator{}, links, ingest.Options{
		ThumbnailSize:    cfg.Ingest.ThumbnailSize,
		ThumbnailTimeout: cfg.Ingest.ThumbnailTimeout,
		MetadataTimeout:  cfg.Ingest.MetadataTimeout,
		MaxParallel:      cfg.Ingest.MaxParallel,
		Logger:           logger,
	})
	return app, nil
}

// refreshView folds a history batch into the read context of its store.
func (a *App) refreshView(ctx context.Context, src history.Source, batch []models.Transaction) error {
	view, ok := a.views[src.ID()]
	if !ok {
		return nil
	}
	provider, ok := src.(merge.ObjectProviding)
	if !ok {
		return fmt.Errorf("store %s cannot provide objects", src.ID())
	}
	return merge.ApplyBatch(ctx, view, provider, batch)
}

// Init runs the first-launch sequence: it makes sure an Inbox exists and
// points the default board at it. Later calls return the default board.
func (a *App) Init(ctx context.Context) (string, error) {
	s := a.Private()
	first, err := s.IsFirstLaunch(ctx)
	if err != nil {
		return "", err
	}
	if !first {
		if id, err := s.DefaultBoard(ctx); err == nil && id != "" {
			return id, nil
		}
	}

	inbox, err := s.EnsureInbox(ctx)
	if err != nil {
		return "", fmt.Errorf("ensure inbox: %w", err)
	}
	if err := s.SetDefaultBoard(ctx, inbox); err != nil {
		return "", err
	}
	if err := s.MarkLaunched(ctx); err != nil {
		return "", err
	}
	a.logger.Info(ctx, "first launch completed", "inbox", inbox)
	return inbox, nil
}

func (a *App) initSignalHandler(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancel()
	}()
}

// Run keeps the process in sync until ctx is done or a signal arrives:
// store file changes feed the history tracker, the coordinator talks to the
// cloud when one is configured and old history is purged periodically.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.initSignalHandler(cancel)

	a.logger.Info(ctx, "starting", "data_dir", a.config.DataDir, "cloud", a.coord.Online())

	if err := a.startWatcher(ctx); err != nil {
		a.logger.Warn(ctx, "store watcher unavailable, relying on polling", "error", err)
	}

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error(ctx, name+" stopped", "error", err)
				cancel()
			}
		}()
	}

	run("history tracker", a.tracker.Run)
	run("history poller", a.poll)
	run("history purge", a.purgeLoop)
	if a.coord.Online() {
		run("sync", a.coord.Run)
	}

	wg.Wait()
	a.logger.Info(context.Background(), "stopped")
	return nil
}

func (a *App) startWatcher(ctx context.Context) error {
	w, err := history.NewWatcher(func(storeID string) {
		_ = a.coord.HandleRemoteChange(ctx, storeID)
	}, a.logger)
	if err != nil {
		return err
	}
	for _, s := range a.stores {
		if err := w.Watch(s.Descriptor()); err != nil {
			_ = w.Stop()
			return err
		}
	}
	w.Start(ctx)
	a.watcher = w
	return nil
}

// poll notifies the tracker on a slow timer so that changes missed by the
// watcher are still picked up.
func (a *App) poll(ctx context.Context) error {
	ticker := time.NewTicker(a.config.SyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, s := range a.stores {
				a.tracker.Notify(s.ID())
			}
		}
	}
}

func (a *App) purgeLoop(ctx context.Context) error {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		if err := a.PurgeHistory(ctx); err != nil {
			a.logger.Warn(ctx, "history purge failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// PurgeHistory drops history older than the retention window that every
// reader has already consumed. Readers that never ran load state directly
// from the store and are ignored.
func (a *App) PurgeHistory(ctx context.Context) error {
	for _, s := range a.stores {
		cutoff := a.now().Add(-historyRetention).UnixMicro()

		for _, actor := range []models.Actor{models.ActorMainApp, models.ActorShareExtension} {
			ts, err := s.Cursor(ctx, actor)
			if err != nil {
				return err
			}
			if ts > 0 {
				cutoff = min(cutoff, ts)
			}
		}
		if a.coord.Online() {
			ts, err := s.PushCursor(ctx)
			if err != nil {
				return err
			}
			cutoff = min(cutoff, ts)
		}
		if cutoff <= 0 {
			continue
		}
		if _, err := s.PurgeHistory(ctx, time.UnixMicro(cutoff)); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) Config() *config.Config                 { return a.config }
func (a *App) Logger() logging.Logger                 { return a.logger }
func (a *App) Private() *store.Store                  { return a.stores[models.ScopePrivate] }
func (a *App) Shared() *store.Store                   { return a.stores[models.ScopeShared] }
func (a *App) Tracker() *history.Tracker              { return a.tracker }
func (a *App) Coordinator() *syncer.Coordinator       { return a.coord }
func (a *App) Ingest() *ingest.Pipeline               { return a.ingest }
func (a *App) View(storeID string) *store.ReadContext { return a.views[storeID] }

// Close releases the watcher, the cloud connection, both stores and the log
// file, in that order.
func (a *App) Close() error {
	var errs []error
	if a.watcher != nil {
		errs = append(errs, a.watcher.Stop())
	}
	if a.client != nil {
		errs = append(errs, a.client.Close())
	}
	for _, s := range a.stores {
		errs = append(errs, s.Close())
	}
	if a.logCloser != nil {
		errs = append(errs, a.logCloser.Close())
	}
	return errors.Join(errs...)
}

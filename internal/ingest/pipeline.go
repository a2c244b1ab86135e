// Package ingest turns external inputs (files, providers, images, audio,
// text and links) into items on a board.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/boardkeeper/internal/common"
	"github.com/dmitrijs2005/boardkeeper/internal/linkmeta"
	"github.com/dmitrijs2005/boardkeeper/internal/logging"
	"github.com/dmitrijs2005/boardkeeper/internal/models"
	"github.com/dmitrijs2005/boardkeeper/internal/thumbnail"
	"golang.org/x/sync/errgroup"
)

const nameTimeLayout = "2006-01-02 15:04:05"

type ItemCreator interface {
	CreateItem(ctx context.Context, spec models.ItemSpec, boardID string) (string, error)
}

type Options struct {
	ThumbnailSize    int
	ThumbnailTimeout time.Duration
	MetadataTimeout  time.Duration
	LockTimeout      time.Duration
	// MaxParallel bounds concurrent tasks; zero runs the whole batch at once.
	MaxParallel int
	TempDir     string
	Now         func() time.Time
	Logger      logging.Logger
}

func (o *Options) defaults() {
	if o.ThumbnailSize <= 0 {
		o.ThumbnailSize = thumbnail.DefaultSize
	}
	if o.ThumbnailTimeout <= 0 {
		o.ThumbnailTimeout = 5 * time.Second
	}
	if o.MetadataTimeout <= 0 {
		o.MetadataTimeout = 10 * time.Second
	}
	if o.LockTimeout <= 0 {
		o.LockTimeout = 10 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
}

// Outcome reports what happened to one input of a batch.
type Outcome struct {
	Index  int
	ItemID string
	Err    error
}

// Result of a batch. Err is the first failure observed; other inputs may
// still have produced items.
type Result struct {
	Outcomes []Outcome
	Err      error
}

// Created returns the ids of the items that were committed, in input order.
func (r Result) Created() []string {
	var ids []string
	for _, o := range r.Outcomes {
		if o.Err == nil && o.ItemID != "" {
			ids = append(ids, o.ItemID)
		}
	}
	return ids
}

type Pipeline struct {
	store  ItemCreator
	thumbs thumbnail.Generator
	links  linkmeta.Fetcher
	opts   Options
	logger logging.Logger
}

// New builds a pipeline. thumbs and links may be nil, in which case items are
// created without previews or fetched titles.
func New(store ItemCreator, thumbs thumbnail.Generator, links linkmeta.Fetcher, opts Options) *Pipeline {
	opts.defaults()
	return &Pipeline{
		store:  store,
		thumbs: thumbs,
		links:  links,
		opts:   opts,
		logger: opts.Logger.With("module", "ingest"),
	}
}

// Process imports every input into boardID as an independent task. Each
// task commits on its own, so a failed input leaves the others in place.
// Cancelling ctx stops the wait but not tasks already started.
func (p *Pipeline) Process(ctx context.Context, inputs []Input, boardID string) (Result, error) {
	res := Result{Outcomes: make([]Outcome, len(inputs))}
	if len(inputs) == 0 {
		return res, nil
	}

	taskCtx := context.WithoutCancel(ctx)
	var g errgroup.Group
	if p.opts.MaxParallel > 0 {
		g.SetLimit(p.opts.MaxParallel)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i, in := range inputs {
			g.Go(func() error {
				id, err := p.process(taskCtx, in, boardID)
				res.Outcomes[i] = Outcome{Index: i, ItemID: id, Err: err}
				if err != nil {
					p.logger.Warn(taskCtx, "ingest failed", "index", i, "kind", in.Kind.String(), "error", err)
					return fmt.Errorf("input %d (%s): %w", i, in.Kind, err)
				}
				return nil
			})
		}
		res.Err = g.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return Result{Err: ctx.Err()}, ctx.Err()
	}

	if res.Err != nil {
		return res, res.Err
	}
	p.logger.Info(ctx, "batch ingested", "board", boardID, "items", len(inputs))
	return res, nil
}

func (p *Pipeline) process(ctx context.Context, in Input, boardID string) (string, error) {
	var (
		spec models.ItemSpec
		err  error
	)
	switch in.Kind {
	case KindFile:
		spec, err = p.fileSpec(ctx, in.Path, in.Name, in.Origin.Limit())
	case KindAudio:
		spec, err = p.audioSpec(ctx, in)
	case KindImage:
		spec, err = p.imageSpec(ctx, in)
	case KindText:
		spec, err = p.noteSpec(in.Text, in.Name, in.Origin.Limit())
	case KindURL:
		spec, err = p.linkSpec(ctx, in.URL, in.Name)
	case KindProvider:
		spec, err = p.providerSpec(ctx, in)
	default:
		err = common.Wrapf(common.ErrUnsupportedType, "input kind %d", in.Kind)
	}
	if err != nil {
		return "", err
	}
	return p.store.CreateItem(ctx, spec, boardID)
}

func (p *Pipeline) autoName(prefix string) string {
	return prefix + " " + p.opts.Now().Format(nameTimeLayout)
}

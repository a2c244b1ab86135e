package syncer

import (
	"context"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/boardkeeper/internal/cloud"
	"github.com/dmitrijs2005/boardkeeper/internal/common"
	"github.com/dmitrijs2005/boardkeeper/internal/merge"
	"github.com/dmitrijs2005/boardkeeper/internal/models"
)

var blobFields = []string{models.FieldData, models.FieldThumbnail}

// Push uploads snapshots of everything written locally since the push
// cursor. Changes imported from the cloud are not sent back.
func (c *Coordinator) Push(ctx context.Context) error {
	if err := c.requireBackend(); err != nil {
		return err
	}
	c.transfer.Lock()
	defer c.transfer.Unlock()

	for _, s := range c.loaded() {
		if err := c.push(ctx, s); err != nil {
			return common.Wrap(common.ErrSyncFailure, fmt.Errorf("push %s: %w", s.Descriptor().Scope, err))
		}
	}
	return nil
}

func (c *Coordinator) push(ctx context.Context, s LocalStore) error {
	cursor, err := s.PushCursor(ctx)
	if err != nil {
		return err
	}
	txs, err := s.TransactionsAfter(ctx, cursor, models.ActorCloudImport)
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		return nil
	}

	records, err := s.Records(ctx, merge.ChangedIDs(txs))
	if err != nil {
		return err
	}
	// Boards and tags precede the items that reference them.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Entity.Rank() < records[j].Entity.Rank()
	})
	for i := range records {
		if err := c.externalize(ctx, &records[i]); err != nil {
			return err
		}
	}

	scope := s.Descriptor().Scope
	var (
		page  []models.Record
		bytes int
	)
	send := func() error {
		resp, err := c.backend.Push(ctx, cloud.PushRequest{Scope: scope, Records: page})
		if err != nil {
			return err
		}
		c.logger.Debug(ctx, "pushed records", "scope", string(scope), "accepted", resp.Accepted, "bytes", bytes)
		page, bytes = nil, 0
		return nil
	}
	for _, rec := range records {
		size, err := cloud.RecordSize(rec)
		if err != nil {
			return err
		}
		if size > cloud.MaxRecordSize {
			c.logger.Warn(ctx, "record too large to sync", "id", rec.ID, "bytes", size)
			continue
		}
		if len(page) > 0 && (len(page) == c.pageSize || bytes+size > c.pageBytes) {
			if err := send(); err != nil {
				return err
			}
		}
		page = append(page, rec)
		bytes += size
	}
	if len(page) > 0 {
		if err := send(); err != nil {
			return err
		}
	}

	last := txs[len(txs)-1].Timestamp
	if err := s.SetPushCursor(ctx, last); err != nil {
		return err
	}
	c.logger.Info(ctx, "push complete", "scope", string(scope), "records", len(records), "cursor", last)
	return nil
}

// Pull merges every record changed on the server since the store's change
// token, page by page. Records can reach a page before the board or tag they
// reference; those are carried into the next page, and the token only moves
// while nothing is carried.
func (c *Coordinator) Pull(ctx context.Context) error {
	if err := c.requireBackend(); err != nil {
		return err
	}
	c.transfer.Lock()
	defer c.transfer.Unlock()

	for _, s := range c.loaded() {
		if err := c.pull(ctx, s); err != nil {
			return common.Wrap(common.ErrSyncFailure, fmt.Errorf("pull %s: %w", s.Descriptor().Scope, err))
		}
	}
	return nil
}

func (c *Coordinator) pull(ctx context.Context, s LocalStore) error {
	token, err := s.ChangeToken(ctx)
	if err != nil {
		return err
	}
	scope := s.Descriptor().Scope
	since, merged := token, 0
	var pending []models.Record

	for {
		resp, err := c.backend.Pull(ctx, cloud.PullRequest{Scope: scope, Since: since, Limit: c.pageSize})
		if err != nil {
			return err
		}
		for i := range resp.Records {
			if err := c.internalize(ctx, &resp.Records[i]); err != nil {
				return err
			}
		}
		pending, err = s.MergeAvailable(ctx, append(pending, resp.Records...))
		if err != nil {
			return err
		}
		merged += len(resp.Records)
		if resp.Token > since {
			since = resp.Token
		}

		done := !resp.More || len(resp.Records) == 0
		if done && len(pending) > 0 {
			// Nothing left on the server can resolve them.
			c.logger.Warn(ctx, "records reference missing objects", "scope", string(scope), "count", len(pending))
			pending = nil
		}
		if len(pending) == 0 && since > token {
			token = since
			if err := s.SetChangeToken(ctx, token); err != nil {
				return err
			}
		}
		if done {
			break
		}
	}

	if merged > 0 {
		c.logger.Info(ctx, "pull complete", "scope", string(scope), "records", merged, "token", token)
		if c.tracker != nil {
			c.tracker.Notify(s.ID())
		}
	}
	return nil
}

// externalize moves inline payloads to the asset store.
func (c *Coordinator) externalize(ctx context.Context, rec *models.Record) error {
	if c.assets == nil || rec.Deleted {
		return nil
	}
	for _, field := range blobFields {
		v, ok := rec.Fields[field]
		if !ok || v == nil {
			continue
		}
		if _, isRef := models.AssetKey(v); isRef {
			continue
		}
		blob, err := models.DecodeBlob(v)
		if err != nil {
			return common.Wrap(common.ErrDataValidation, err)
		}
		key, err := c.assets.Put(ctx, blob)
		if err != nil {
			return err
		}
		rec.Fields[field] = models.AssetRef(key)
	}
	return nil
}

// internalize resolves asset references back into inline payloads. Without
// an asset store the property is dropped, so the local value survives.
func (c *Coordinator) internalize(ctx context.Context, rec *models.Record) error {
	for _, field := range blobFields {
		key, ok := models.AssetKey(rec.Fields[field])
		if !ok {
			continue
		}
		if c.assets == nil {
			c.logger.Warn(ctx, "dropping asset without an asset store", "id", rec.ID, "field", field)
			delete(rec.Fields, field)
			delete(rec.Clock, field)
			continue
		}
		blob, err := c.assets.Get(ctx, key)
		if err != nil {
			return err
		}
		rec.Fields[field] = models.EncodeBlob(blob)
	}
	return nil
}

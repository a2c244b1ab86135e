package syncer

import (
	"context"

	"github.com/dmitrijs2005/boardkeeper/internal/cloud"
	"github.com/dmitrijs2005/boardkeeper/internal/common"
	"github.com/dmitrijs2005/boardkeeper/internal/models"
)

// CreateShare returns the share token of a private board, minting the share
// record on first use. Concurrent calls for one board share a single mint.
func (c *Coordinator) CreateShare(ctx context.Context, boardID string) (models.ShareToken, error) {
	if err := c.requireBackend(); err != nil {
		return models.ShareToken{}, err
	}
	s, err := c.Store(models.ScopePrivate)
	if err != nil {
		return models.ShareToken{}, err
	}

	v, err, _ := c.shares.Do(boardID, func() (any, error) {
		return c.createShare(ctx, s, boardID)
	})
	if err != nil {
		return models.ShareToken{}, err
	}
	return v.(models.ShareToken), nil
}

func (c *Coordinator) createShare(ctx context.Context, s LocalStore, boardID string) (models.ShareToken, error) {
	b, err := s.Board(ctx, boardID)
	if err != nil {
		return models.ShareToken{}, err
	}
	if b.ShareID != "" {
		token, err := s.ShareToken(ctx, boardID)
		if err != nil {
			return models.ShareToken{}, err
		}
		if token != "" {
			return models.ShareToken{ShareID: b.ShareID, BoardID: boardID, Token: token}, nil
		}
	}

	info, err := c.backend.CreateShare(ctx, cloud.ShareRequest{
		BoardID:   boardID,
		Title:     b.Name,
		Thumbnail: c.boardThumbnail(ctx, s, boardID),
	})
	if err != nil {
		c.logger.Error(ctx, "share creation failed", "board", boardID, "error", err)
		return models.ShareToken{}, common.Wrap(common.ErrSyncFailure, err)
	}
	if b.ShareID != "" && b.ShareID != info.ShareID {
		c.logger.Warn(ctx, "cloud returned a different share for board", "board", boardID, "had", b.ShareID, "got", info.ShareID)
	}

	if err := s.SetBoardShare(ctx, boardID, info.ShareID); err != nil {
		return models.ShareToken{}, err
	}
	if err := s.SetShareToken(ctx, boardID, info.Token); err != nil {
		return models.ShareToken{}, err
	}
	c.logger.Info(ctx, "board shared", "board", boardID, "share", info.ShareID)
	return models.ShareToken{ShareID: info.ShareID, BoardID: boardID, Token: info.Token}, nil
}

// boardThumbnail picks the newest item preview on the board, if any.
func (c *Coordinator) boardThumbnail(ctx context.Context, s LocalStore, boardID string) []byte {
	items, err := s.Items(ctx, boardID)
	if err != nil {
		c.logger.Warn(ctx, "no items for share thumbnail", "board", boardID, "error", err)
		return nil
	}
	for _, it := range items {
		thumb, err := s.Thumbnail(ctx, it.ID)
		if err == nil && len(thumb) > 0 {
			return thumb
		}
	}
	return nil
}

// AcceptShareInvitation registers this account on a share and imports the
// shared board into the shared store. Failures are logged and returned; the
// caller decides whether to try again.
func (c *Coordinator) AcceptShareInvitation(ctx context.Context, meta models.ShareMetadata) (models.ShareToken, error) {
	if err := c.requireBackend(); err != nil {
		return models.ShareToken{}, err
	}
	if meta.Token == "" {
		return models.ShareToken{}, common.Wrapf(common.ErrDataValidation, "share token is empty")
	}
	shared, err := c.Store(models.ScopeShared)
	if err != nil {
		return models.ShareToken{}, err
	}

	info, err := c.backend.AcceptShare(ctx, meta.Token)
	if err != nil {
		c.logger.Error(ctx, "share invitation rejected", "error", err)
		return models.ShareToken{}, common.Wrap(common.ErrSyncFailure, err)
	}

	c.transfer.Lock()
	err = c.pull(ctx, shared)
	c.transfer.Unlock()
	if err != nil {
		c.logger.Error(ctx, "shared board import failed", "share", info.ShareID, "error", err)
		return models.ShareToken{}, common.Wrap(common.ErrSyncFailure, err)
	}

	c.logger.Info(ctx, "share accepted", "share", info.ShareID, "board", info.BoardID, "owner", info.OwnerID)
	return models.ShareToken{ShareID: info.ShareID, BoardID: info.BoardID, Token: meta.Token}, nil
}

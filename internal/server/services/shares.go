package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/boardkeeper/internal/cloud"
	"github.com/dmitrijs2005/boardkeeper/internal/common"
	"github.com/dmitrijs2005/boardkeeper/internal/dbx"
	"github.com/dmitrijs2005/boardkeeper/internal/logging"
	"github.com/dmitrijs2005/boardkeeper/internal/server/auth"
	"github.com/dmitrijs2005/boardkeeper/internal/server/config"
	"github.com/dmitrijs2005/boardkeeper/internal/server/models"
	"github.com/dmitrijs2005/boardkeeper/internal/server/repositories/repomanager"
)

// ShareService creates board shares and admits participants holding a
// share token.
type ShareService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	jwtSecret     []byte
	tokenValidity time.Duration
	logger        logging.Logger
}

func NewShareService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *ShareService {
	return &ShareService{
		db:            db,
		repomanager:   m,
		jwtSecret:     []byte(cfg.SecretKey),
		tokenValidity: cfg.ShareTokenValidityDuration,
		logger:        logger.With("module", "shares"),
	}
}

// Create returns the share of req.BoardID. A participant asking to share a
// board it joined gets the owner's existing share back. Otherwise the
// caller's share is created, or refreshed with the new title and thumbnail.
func (s *ShareService) Create(ctx context.Context, userID string, req cloud.ShareRequest) (cloud.ShareInfo, error) {
	if req.BoardID == "" {
		return cloud.ShareInfo{}, common.Wrapf(common.ErrDataValidation, "board id is empty")
	}

	var share *models.Share
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Shares(tx)
		joined, err := repo.FindForParticipant(ctx, userID, req.BoardID)
		if err == nil {
			share = joined
			return nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return err
		}
		share = &models.Share{OwnerID: userID, BoardID: req.BoardID, Title: req.Title, Thumbnail: req.Thumbnail}
		return repo.Upsert(ctx, share)
	})
	if err != nil {
		return cloud.ShareInfo{}, err
	}

	info, err := s.info(share)
	if err != nil {
		return cloud.ShareInfo{}, err
	}
	s.logger.Info(ctx, "share ready", "share", share.ID, "board", share.BoardID, "owner", share.OwnerID)
	return info, nil
}

// Accept registers userID as a participant of the share named by token.
// Accepting twice, or accepting one's own share, is a no-op.
func (s *ShareService) Accept(ctx context.Context, userID, token string) (cloud.ShareInfo, error) {
	shareID, err := auth.GetShareIDFromToken(token, s.jwtSecret)
	if err != nil {
		return cloud.ShareInfo{}, err
	}

	var share *models.Share
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Shares(tx)
		var err error
		share, err = repo.Get(ctx, shareID)
		if err != nil {
			return err
		}
		if share.OwnerID == userID {
			return nil
		}
		return repo.AddParticipant(ctx, share.ID, userID)
	})
	if err != nil {
		return cloud.ShareInfo{}, err
	}

	s.logger.Info(ctx, "share accepted", "share", share.ID, "user", userID)
	return s.info(share)
}

func (s *ShareService) info(share *models.Share) (cloud.ShareInfo, error) {
	token, err := auth.GenerateShareToken(share.ID, s.jwtSecret, s.tokenValidity)
	if err != nil {
		return cloud.ShareInfo{}, err
	}
	return cloud.ShareInfo{
		ShareID: share.ID,
		BoardID: share.BoardID,
		OwnerID: share.OwnerID,
		Title:   share.Title,
		Token:   token,
	}, nil
}

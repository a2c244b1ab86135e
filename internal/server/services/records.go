// Package services holds the cloud container's business logic: merging
// pushed records into the authoritative copy, paging pulls, and managing
// board shares.
package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dmitrijs2005/boardkeeper/internal/cloud"
	"github.com/dmitrijs2005/boardkeeper/internal/common"
	"github.com/dmitrijs2005/boardkeeper/internal/dbx"
	"github.com/dmitrijs2005/boardkeeper/internal/logging"
	"github.com/dmitrijs2005/boardkeeper/internal/merge"
	core "github.com/dmitrijs2005/boardkeeper/internal/models"
	"github.com/dmitrijs2005/boardkeeper/internal/server/config"
	"github.com/dmitrijs2005/boardkeeper/internal/server/models"
	"github.com/dmitrijs2005/boardkeeper/internal/server/repositories/records"
	"github.com/dmitrijs2005/boardkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/boardkeeper/internal/server/repositories/shares"
)

// RecordService keeps one merged copy of every record per owner and scope.
// Pushes from any device fold into it under the same policy the clients
// use, so the server copy converges with theirs.
type RecordService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	policy      merge.Policy
	pageSize    int
	pageBytes   int
	logger      logging.Logger
}

func NewRecordService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *RecordService {
	return &RecordService{
		db:          db,
		repomanager: m,
		policy:      merge.PropertyLWW{},
		pageSize:    cfg.PageSize,
		pageBytes:   cloud.PageBytes,
		logger:      logger.With("module", "records"),
	}
}

// Push merges req.Records for userID in one transaction. Shared-scope
// records of a board another user shared with the caller are written under
// that owner. Accepted counts the records that changed server state.
func (s *RecordService) Push(ctx context.Context, userID string, req cloud.PushRequest) (cloud.PushResponse, error) {
	if !req.Scope.Valid() {
		return cloud.PushResponse{}, common.Wrapf(common.ErrDataValidation, "unknown scope %q", req.Scope)
	}
	for _, r := range req.Records {
		if err := validateRecord(r); err != nil {
			return cloud.PushResponse{}, err
		}
	}

	var resp cloud.PushResponse
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		recs := s.repomanager.Records(tx)
		shareRepo := s.repomanager.Shares(tx)
		for _, r := range req.Records {
			target, err := s.locate(ctx, recs, shareRepo, userID, req.Scope, r)
			if err != nil {
				return err
			}
			var local *core.Record
			if target.Version != 0 {
				local = &target.Record
			}
			merged, changed := s.policy.Merge(local, r)
			if !changed {
				continue
			}
			target.Record = merged
			if b := models.BoardOf(merged); b != "" {
				target.BoardID = b
			}
			v, err := recs.Save(ctx, target)
			if err != nil {
				return err
			}
			resp.Accepted++
			resp.Token = max(resp.Token, v)
		}
		return nil
	})
	if err != nil {
		return cloud.PushResponse{}, err
	}
	s.logger.Debug(ctx, "push merged", "user", userID, "scope", string(req.Scope),
		"received", len(req.Records), "accepted", resp.Accepted)
	return resp, nil
}

// locate returns the stored copy of r, or a fresh target keyed to the
// owner r should be filed under. A fresh target has Version 0.
func (s *RecordService) locate(ctx context.Context, recs records.Repository, shareRepo shares.Repository, userID string, scope core.Scope, r core.Record) (*models.StoredRecord, error) {
	var (
		current *models.StoredRecord
		err     error
	)
	if scope == core.ScopeShared {
		current, err = recs.FindShared(ctx, userID, r.ID)
	} else {
		current, err = recs.Get(ctx, userID, scope, r.ID)
	}
	if err == nil {
		return current, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	target := &models.StoredRecord{OwnerID: userID, Scope: scope, BoardID: models.BoardOf(r)}
	if scope == core.ScopeShared && target.BoardID != "" {
		sh, err := shareRepo.FindForParticipant(ctx, userID, target.BoardID)
		switch {
		case err == nil:
			target.OwnerID = sh.OwnerID
		case !errors.Is(err, common.ErrNotFound):
			return nil, err
		}
	}
	return target, nil
}

// Pull returns up to one page of records changed after req.Since. A page
// ends at the record limit or once its encoded size would pass the page
// budget. The response token is the version of the last record returned, or
// Since when nothing changed.
func (s *RecordService) Pull(ctx context.Context, userID string, req cloud.PullRequest) (cloud.PullResponse, error) {
	if !req.Scope.Valid() {
		return cloud.PullResponse{}, common.Wrapf(common.ErrDataValidation, "unknown scope %q", req.Scope)
	}
	if req.Since < 0 {
		return cloud.PullResponse{}, common.Wrapf(common.ErrDataValidation, "negative change token %d", req.Since)
	}
	limit := s.pageSize
	if req.Limit > 0 && req.Limit < limit {
		limit = req.Limit
	}

	repo := s.repomanager.Records(s.db)
	var (
		rows []models.StoredRecord
		err  error
	)
	if req.Scope == core.ScopeShared {
		rows, err = repo.ListShared(ctx, userID, req.Since, limit+1)
	} else {
		rows, err = repo.ListPrivate(ctx, userID, req.Since, limit+1)
	}
	if err != nil {
		return cloud.PullResponse{}, err
	}

	resp := cloud.PullResponse{Token: req.Since, Records: make([]core.Record, 0, min(len(rows), limit))}
	bytes := 0
	for i, row := range rows {
		if i == limit {
			resp.More = true
			break
		}
		size, err := cloud.RecordSize(row.Record)
		if err != nil {
			return cloud.PullResponse{}, err
		}
		if i > 0 && bytes+size > s.pageBytes {
			resp.More = true
			break
		}
		bytes += size
		resp.Records = append(resp.Records, row.Record)
		resp.Token = row.Version
	}
	return resp, nil
}

func validateRecord(r core.Record) error {
	if r.ID == "" {
		return common.Wrapf(common.ErrDataValidation, "record without id")
	}
	switch r.Entity {
	case core.EntityBoard, core.EntityTag, core.EntityItem:
		return nil
	default:
		return common.Wrapf(common.ErrDataValidation, "record %s: unknown entity %q", r.ID, r.Entity)
	}
}

package records

import (
	"context"

	core "github.com/dmitrijs2005/boardkeeper/internal/models"
	"github.com/dmitrijs2005/boardkeeper/internal/server/models"
)

type Repository interface {
	// Get locks and returns the record; common.ErrNotFound when absent.
	Get(ctx context.Context, ownerID string, scope core.Scope, id string) (*models.StoredRecord, error)
	// FindShared locks and returns the shared-scope record id that userID
	// owns or reaches through a share it joined.
	FindShared(ctx context.Context, userID, id string) (*models.StoredRecord, error)
	// Save inserts or replaces the record and returns its new version.
	Save(ctx context.Context, rec *models.StoredRecord) (int64, error)
	ListPrivate(ctx context.Context, ownerID string, since int64, limit int) ([]models.StoredRecord, error)
	// ListShared returns shared-scope records userID owns or joined.
	ListShared(ctx context.Context, userID string, since int64, limit int) ([]models.StoredRecord, error)
}

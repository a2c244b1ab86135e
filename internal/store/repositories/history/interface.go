// Package history persists the transaction log: one row per committed write
// with its author and timestamp, plus the objects it changed.
package history

import (
	"context"

	"github.com/dmitrijs2005/boardkeeper/internal/models"
)

type Repository interface {
	Append(ctx context.Context, author models.Actor, ts int64, changes []models.Change) (int64, error)
	LastTimestamp(ctx context.Context) (int64, error)
	After(ctx context.Context, after int64, exclude models.Actor) ([]models.Transaction, error)
	Purge(ctx context.Context, before int64) (int64, error)
}

// Package tombstones remembers deleted object ids so that late updates from
// other writers cannot resurrect them.
package tombstones

import (
	"context"

	"github.com/dmitrijs2005/boardkeeper/internal/models"
)

type Repository interface {
	Put(ctx context.Context, id string, entity models.Entity, ts int64) error
	Get(ctx context.Context, id string) (models.Entity, int64, bool, error)
	Purge(ctx context.Context, before int64) error
}

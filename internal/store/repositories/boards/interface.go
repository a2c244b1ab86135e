// Package boards persists boards in the local SQLite store.
package boards

import (
	"context"

	"github.com/dmitrijs2005/boardkeeper/internal/models"
)

type Repository interface {
	Insert(ctx context.Context, b *models.Board) error
	Update(ctx context.Context, b *models.Board) error
	Get(ctx context.Context, id string) (*models.Board, error)
	FindByName(ctx context.Context, name string) ([]models.Board, error)
	List(ctx context.Context) ([]models.Board, error)
	Delete(ctx context.Context, id string) error
	MaxSortOrder(ctx context.Context) (float64, error)
}

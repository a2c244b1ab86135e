// Package tags persists board-scoped tags.
package tags

import (
	"context"

	"github.com/dmitrijs2005/boardkeeper/internal/models"
)

type Repository interface {
	Insert(ctx context.Context, t *models.Tag) error
	Update(ctx context.Context, t *models.Tag) error
	Get(ctx context.Context, id string) (*models.Tag, error)
	ListByBoard(ctx context.Context, boardID string) ([]models.Tag, error)
	Delete(ctx context.Context, id string) error
	NextSortOrder(ctx context.Context, boardID string) (int, error)
}

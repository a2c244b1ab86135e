// Package items persists items and their tag associations.
package items

import (
	"context"

	"github.com/dmitrijs2005/boardkeeper/internal/models"
)

type Repository interface {
	Insert(ctx context.Context, it *models.Item) error
	Update(ctx context.Context, it *models.Item) error
	Get(ctx context.Context, id string) (*models.Item, error)
	ListByBoard(ctx context.Context, boardID string) ([]models.Item, error)
	IDsByBoard(ctx context.Context, boardID string) ([]string, error)
	Delete(ctx context.Context, id string) error

	TagIDs(ctx context.Context, itemID string) ([]string, error)
	AddTag(ctx context.Context, itemID, tagID string) (bool, error)
	RemoveTag(ctx context.Context, itemID, tagID string) (bool, error)
	SetTags(ctx context.Context, itemID string, tagIDs []string) error
	ItemIDsByTag(ctx context.Context, tagID string) ([]string, error)
}

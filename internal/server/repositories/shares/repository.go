package shares

import (
	"context"

	"github.com/dmitrijs2005/boardkeeper/internal/server/models"
)

type Repository interface {
	// Upsert creates the share for (OwnerID, BoardID) or refreshes its title
	// and thumbnail, filling in ID and CreatedAt.
	Upsert(ctx context.Context, s *models.Share) error
	Get(ctx context.Context, id string) (*models.Share, error)
	// FindForParticipant returns the share of boardID that userID joined.
	FindForParticipant(ctx context.Context, userID, boardID string) (*models.Share, error)
	AddParticipant(ctx context.Context, shareID, userID string) error
}

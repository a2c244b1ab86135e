// Package shares persists board shares and their participants in PostgreSQL.
package shares

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/boardkeeper/internal/common"
	"github.com/dmitrijs2005/boardkeeper/internal/dbx"
	"github.com/dmitrijs2005/boardkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, s *models.Share) error {
	query := `
		INSERT INTO shares (owner_id, board_id, title, thumbnail)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_id, board_id) DO UPDATE
		SET title = EXCLUDED.title,
		    thumbnail = EXCLUDED.thumbnail
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, s.OwnerID, s.BoardID, s.Title, s.Thumbnail).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Share, error) {
	query := `
		SELECT id, owner_id, board_id, title, thumbnail, created_at
		FROM shares
		WHERE id = $1
	`
	return r.one(ctx, query, id)
}

func (r *PostgresRepository) FindForParticipant(ctx context.Context, userID, boardID string) (*models.Share, error) {
	query := `
		SELECT s.id, s.owner_id, s.board_id, s.title, s.thumbnail, s.created_at
		FROM shares s
		JOIN share_participants p ON p.share_id = s.id
		WHERE p.user_id = $1 AND s.board_id = $2
	`
	return r.one(ctx, query, userID, boardID)
}

// AddParticipant is idempotent.
func (r *PostgresRepository) AddParticipant(ctx context.Context, shareID, userID string) error {
	query := `
		INSERT INTO share_participants (share_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, shareID, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) one(ctx context.Context, query string, args ...any) (*models.Share, error) {
	s := &models.Share{}
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&s.ID, &s.OwnerID, &s.BoardID, &s.Title, &s.Thumbnail, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

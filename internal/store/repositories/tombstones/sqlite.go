package tombstones

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/boardkeeper/internal/dbx"
	"github.com/dmitrijs2005/boardkeeper/internal/models"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Put(ctx context.Context, id string, entity models.Entity, ts int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tombstones (id, entity, deleted_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING`, id, string(entity), ts)
	if err != nil {
		return fmt.Errorf("failed to put tombstone[%s]: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (models.Entity, int64, bool, error) {
	var entity string
	var ts int64
	err := r.db.QueryRowContext(ctx, `SELECT entity, deleted_at FROM tombstones WHERE id = ?`, id).Scan(&entity, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, fmt.Errorf("failed to get tombstone[%s]: %w", id, err)
	}
	return models.Entity(entity), ts, true, nil
}

func (r *SQLiteRepository) Purge(ctx context.Context, before int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tombstones WHERE deleted_at < ?`, before); err != nil {
		return fmt.Errorf("failed to purge tombstones: %w", err)
	}
	return nil
}

package tags

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/boardkeeper/internal/common"
	"github.com/dmitrijs2005/boardkeeper/internal/dbx"
	"github.com/dmitrijs2005/boardkeeper/internal/models"
)

const columns = `id, board_id, name, color, sort_order, clock, created_at, updated_at`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func scan(s dbx.Scanner) (models.Tag, error) {
	var t models.Tag
	var created, updated int64
	if err := s.Scan(&t.ID, &t.BoardID, &t.Name, &t.Color, &t.SortOrder, &t.Clock, &created, &updated); err != nil {
		return t, err
	}
	t.CreatedAt = time.UnixMicro(created)
	t.UpdatedAt = time.UnixMicro(updated)
	return t, nil
}

func (r *SQLiteRepository) Insert(ctx context.Context, t *models.Tag) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO tags (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.BoardID, t.Name, int(t.Color), t.SortOrder, t.Clock, t.CreatedAt.UnixMicro(), t.UpdatedAt.UnixMicro())
	if err != nil {
		return fmt.Errorf("failed to insert tag: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, t *models.Tag) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tags SET board_id = ?, name = ?, color = ?, sort_order = ?, clock = ?, updated_at = ?
		WHERE id = ?`,
		t.BoardID, t.Name, int(t.Color), t.SortOrder, t.Clock, t.UpdatedAt.UnixMicro(), t.ID)
	if err != nil {
		return fmt.Errorf("failed to update tag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("tag %s: %w", t.ID, common.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Tag, error) {
	t, err := scan(r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM tags WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tag %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tag: %w", err)
	}
	return &t, nil
}

func (r *SQLiteRepository) ListByBoard(ctx context.Context, boardID string) ([]models.Tag, error) {
	res, err := dbx.QueryAll(ctx, r.db, scan,
		`SELECT `+columns+` FROM tags WHERE board_id = ? ORDER BY sort_order, created_at`, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return res, nil
}

// Delete removes the tag and its item associations.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("tag %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) NextSortOrder(ctx context.Context, boardID string) (int, error) {
	var v sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT MAX(sort_order) FROM tags WHERE board_id = ?`, boardID).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("failed to get tag sort order: %w", err)
	}
	if !v.Valid {
		return 0, nil
	}
	return int(v.Int64) + 1, nil
}

package boards

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

const columns = `id, name, sort_order, share_id, clock, created_at, updated_at`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func scan(s dbx.Scanner) (models.Board, error) {
	var b models.Board
	var created, updated int64
	if err := s.Scan(&b.ID, &b.Name, &b.SortOrder, &b.ShareID, &b.Clock, &created, &updated); err != nil {
		return b, err
	}
	b.CreatedAt = time.UnixMicro(created)
	b.UpdatedAt = time.UnixMicro(updated)
	return b, nil
}

func (r *SQLiteRepository) Insert(ctx context.Context, b *models.Board) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO boards (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, b.SortOrder, b.ShareID, b.Clock, b.CreatedAt.UnixMicro(), b.UpdatedAt.UnixMicro())
	if err != nil {
		return fmt.Errorf("failed to insert board: %w", err)
	}
	return nil
}

// Update rewrites every mutable column of b.
func (r *SQLiteRepository) Update(ctx context.Context, b *models.Board) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE boards SET name = ?, sort_order = ?, share_id = ?, clock = ?, updated_at = ?
		WHERE id = ?`,
		b.Name, b.SortOrder, b.ShareID, b.Clock, b.UpdatedAt.UnixMicro(), b.ID)
	if err != nil {
		return fmt.Errorf("failed to update board: %w", err)
	}
	return expectOne(res, b.ID)
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Board, error) {
	b, err := scan(r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM boards WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("board %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get board: %w", err)
	}
	return &b, nil
}

func (r *SQLiteRepository) FindByName(ctx context.Context, name string) ([]models.Board, error) {
	res, err := dbx.QueryAll(ctx, r.db, scan, `SELECT `+columns+` FROM boards WHERE name = ? ORDER BY created_at`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to find board by name: %w", err)
	}
	return res, nil
}

// List returns boards in display order.
func (r *SQLiteRepository) List(ctx context.Context) ([]models.Board, error) {
	res, err := dbx.QueryAll(ctx, r.db, scan, `SELECT `+columns+` FROM boards ORDER BY sort_order DESC, created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}
	return res, nil
}

// Delete removes the board; items and tags cascade.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM boards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete board: %w", err)
	}
	return expectOne(res, id)
}

func (r *SQLiteRepository) MaxSortOrder(ctx context.Context) (float64, error) {
	var v sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(sort_order) FROM boards`).Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to get max sort order: %w", err)
	}
	return v.Float64, nil
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("board %s: %w", id, common.ErrNotFound)
	}
	return nil
}

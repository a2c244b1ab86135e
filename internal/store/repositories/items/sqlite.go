package items

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

const columns = `id, board_id, uuid, name, note, display_type, content_type, clock, created_at, updated_at`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func scan(s dbx.Scanner) (models.Item, error) {
	var it models.Item
	var name, note sql.NullString
	var created, updated int64
	err := s.Scan(&it.ID, &it.BoardID, &it.UUID, &name, &note, &it.DisplayType, &it.ContentType,
		&it.Clock, &created, &updated)
	if err != nil {
		return it, err
	}
	if name.Valid {
		it.Name = &name.String
	}
	if note.Valid {
		it.Note = &note.String
	}
	it.CreatedAt = time.UnixMicro(created)
	it.UpdatedAt = time.UnixMicro(updated)
	return it, nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func (r *SQLiteRepository) Insert(ctx context.Context, it *models.Item) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO items (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.BoardID, it.UUID, nullable(it.Name), nullable(it.Note), string(it.DisplayType), it.ContentType,
		it.Clock, it.CreatedAt.UnixMicro(), it.UpdatedAt.UnixMicro())
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

// Update rewrites the mutable columns. display_type is never changed.
func (r *SQLiteRepository) Update(ctx context.Context, it *models.Item) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE items SET board_id = ?, name = ?, note = ?, content_type = ?, clock = ?, updated_at = ?
		WHERE id = ?`,
		it.BoardID, nullable(it.Name), nullable(it.Note), it.ContentType, it.Clock, it.UpdatedAt.UnixMicro(), it.ID)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	return expectOne(res, it.ID)
}

// Get loads the item together with its tag ids.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Item, error) {
	it, err := scan(r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if it.TagIDs, err = r.TagIDs(ctx, id); err != nil {
		return nil, err
	}
	return &it, nil
}

// ListByBoard returns items newest first, with tag ids.
func (r *SQLiteRepository) ListByBoard(ctx context.Context, boardID string) ([]models.Item, error) {
	res, err := dbx.QueryAll(ctx, r.db, scan,
		`SELECT `+columns+` FROM items WHERE board_id = ? ORDER BY created_at DESC`, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	for i := range res {
		if res[i].TagIDs, err = r.TagIDs(ctx, res[i].ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func scanString(s dbx.Scanner) (string, error) {
	var v string
	err := s.Scan(&v)
	return v, err
}

func (r *SQLiteRepository) IDsByBoard(ctx context.Context, boardID string) ([]string, error) {
	res, err := dbx.QueryAll(ctx, r.db, scanString, `SELECT id FROM items WHERE board_id = ?`, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list item ids: %w", err)
	}
	return res, nil
}

// Delete removes the item; payloads and tag associations cascade.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return expectOne(res, id)
}

func (r *SQLiteRepository) TagIDs(ctx context.Context, itemID string) ([]string, error) {
	res, err := dbx.QueryAll(ctx, r.db, scanString,
		`SELECT tag_id FROM item_tags WHERE item_id = ? ORDER BY tag_id`, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list item tags: %w", err)
	}
	return res, nil
}

func (r *SQLiteRepository) ItemIDsByTag(ctx context.Context, tagID string) ([]string, error) {
	res, err := dbx.QueryAll(ctx, r.db, scanString, `SELECT item_id FROM item_tags WHERE tag_id = ?`, tagID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tagged items: %w", err)
	}
	return res, nil
}

// AddTag reports whether the association was created. Re-adding is a no-op.
func (r *SQLiteRepository) AddTag(ctx context.Context, itemID, tagID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO item_tags (item_id, tag_id) VALUES (?, ?)`, itemID, tagID)
	if err != nil {
		return false, fmt.Errorf("failed to add item tag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// RemoveTag reports whether an association was removed.
func (r *SQLiteRepository) RemoveTag(ctx context.Context, itemID, tagID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM item_tags WHERE item_id = ? AND tag_id = ?`, itemID, tagID)
	if err != nil {
		return false, fmt.Errorf("failed to remove item tag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// SetTags replaces the item's associations with tagIDs.
func (r *SQLiteRepository) SetTags(ctx context.Context, itemID string, tagIDs []string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM item_tags WHERE item_id = ?`, itemID); err != nil {
		return fmt.Errorf("failed to clear item tags: %w", err)
	}
	for _, id := range tagIDs {
		if _, err := r.AddTag(ctx, itemID, id); err != nil {
			return err
		}
	}
	return nil
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("item %s: %w", id, common.ErrNotFound)
	}
	return nil
}

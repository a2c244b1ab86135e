package payloads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/boardkeeper/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) SetData(ctx context.Context, itemID string, data []byte) error {
	return r.put(ctx, "item_data", itemID, data)
}

// Data returns (nil, nil) when the item has no payload.
func (r *SQLiteRepository) Data(ctx context.Context, itemID string) ([]byte, error) {
	return r.get(ctx, "item_data", itemID)
}

func (r *SQLiteRepository) SetThumbnail(ctx context.Context, itemID string, data []byte) error {
	return r.put(ctx, "thumbnails", itemID, data)
}

func (r *SQLiteRepository) Thumbnail(ctx context.Context, itemID string) ([]byte, error) {
	return r.get(ctx, "thumbnails", itemID)
}

// put deletes the row for a nil blob so absence stays distinguishable.
func (r *SQLiteRepository) put(ctx context.Context, table, itemID string, data []byte) error {
	var err error
	if data == nil {
		_, err = r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE item_id = ?`, itemID)
	} else {
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO `+table+` (item_id, data) VALUES (?, ?)
			ON CONFLICT(item_id) DO UPDATE SET data = excluded.data`, itemID, data)
	}
	if err != nil {
		return fmt.Errorf("failed to set %s[%s]: %w", table, itemID, err)
	}
	return nil
}

func (r *SQLiteRepository) get(ctx context.Context, table, itemID string) ([]byte, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, `SELECT data FROM `+table+` WHERE item_id = ?`, itemID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s[%s]: %w", table, itemID, err)
	}
	return data, nil
}

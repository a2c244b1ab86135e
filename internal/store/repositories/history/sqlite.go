package history

import (
	"context"
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

func (r *SQLiteRepository) Append(ctx context.Context, author models.Actor, ts int64, changes []models.Change) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO transactions (author, ts) VALUES (?, ?) RETURNING id`, string(author), ts).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to append transaction: %w", err)
	}
	for _, c := range changes {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO changes (transaction_id, object_id, entity, op) VALUES (?, ?, ?, ?)`,
			id, c.ObjectID, string(c.Entity), string(c.Op))
		if err != nil {
			return 0, fmt.Errorf("failed to append change: %w", err)
		}
	}
	return id, nil
}

// LastTimestamp returns 0 for an empty log.
func (r *SQLiteRepository) LastTimestamp(ctx context.Context) (int64, error) {
	var ts int64
	if err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(ts), 0) FROM transactions`).Scan(&ts); err != nil {
		return 0, fmt.Errorf("failed to read last timestamp: %w", err)
	}
	return ts, nil
}

type row struct {
	id     int64
	author string
	ts     int64
	object string
	entity string
	op     string
}

func scanRow(s dbx.Scanner) (row, error) {
	var r row
	err := s.Scan(&r.id, &r.author, &r.ts, &r.object, &r.entity, &r.op)
	return r, err
}

// After returns transactions with ts > after not written by exclude, oldest
// first. An empty exclude returns every author.
func (r *SQLiteRepository) After(ctx context.Context, after int64, exclude models.Actor) ([]models.Transaction, error) {
	rows, err := dbx.QueryAll(ctx, r.db, scanRow, `
		SELECT t.id, t.author, t.ts, c.object_id, c.entity, c.op
		FROM transactions t
		JOIN changes c ON c.transaction_id = t.id
		WHERE t.ts > ? AND t.author <> ?
		ORDER BY t.ts, c.rowid`, after, string(exclude))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}

	var out []models.Transaction
	for _, rw := range rows {
		if len(out) == 0 || out[len(out)-1].ID != rw.id {
			out = append(out, models.Transaction{ID: rw.id, Author: models.Actor(rw.author), Timestamp: rw.ts})
		}
		last := &out[len(out)-1]
		last.Changes = append(last.Changes, models.Change{
			ObjectID: rw.object,
			Entity:   models.Entity(rw.entity),
			Op:       models.Op(rw.op),
		})
	}
	return out, nil
}

// Purge drops transactions older than before and reports how many went.
func (r *SQLiteRepository) Purge(ctx context.Context, before int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE ts < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge history: %w", err)
	}
	return res.RowsAffected()
}

// Package records stores synced object snapshots in PostgreSQL.
package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/boardkeeper/internal/common"
	"github.com/dmitrijs2005/boardkeeper/internal/dbx"
	core "github.com/dmitrijs2005/boardkeeper/internal/models"
	"github.com/dmitrijs2005/boardkeeper/internal/server/models"
)

const columns = `r.owner_id, r.scope, r.board_id, r.version, r.payload, r.updated_at`

// joined is true when r belongs to a share that user $1 participates in.
const joined = `EXISTS (
			SELECT 1 FROM shares s
			JOIN share_participants p ON p.share_id = s.id
			WHERE s.owner_id = r.owner_id AND s.board_id = r.board_id AND p.user_id = $1
		)`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID string, scope core.Scope, id string) (*models.StoredRecord, error) {
	query := `
		SELECT ` + columns + `
		FROM records r
		WHERE r.owner_id = $1 AND r.scope = $2 AND r.id = $3
		FOR UPDATE
	`
	return r.one(ctx, query, ownerID, string(scope), id)
}

func (r *PostgresRepository) FindShared(ctx context.Context, userID, id string) (*models.StoredRecord, error) {
	query := `
		SELECT ` + columns + `
		FROM records r
		WHERE r.scope = 'shared' AND r.id = $2
		  AND (r.owner_id = $1 OR ` + joined + `)
		ORDER BY r.owner_id = $1 DESC
		LIMIT 1
		FOR UPDATE
	`
	return r.one(ctx, query, userID, id)
}

func (r *PostgresRepository) Save(ctx context.Context, rec *models.StoredRecord) (int64, error) {
	payload, err := json.Marshal(rec.Record)
	if err != nil {
		return 0, fmt.Errorf("encode record %s: %w", rec.Record.ID, err)
	}
	query := `
		INSERT INTO records (owner_id, scope, id, board_id, entity, deleted, payload, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, nextval('record_versions'), now())
		ON CONFLICT (owner_id, scope, id) DO UPDATE
		SET board_id = EXCLUDED.board_id,
		    deleted = EXCLUDED.deleted,
		    payload = EXCLUDED.payload,
		    version = EXCLUDED.version,
		    updated_at = EXCLUDED.updated_at
		RETURNING version
	`
	var version int64
	err = r.db.QueryRowContext(ctx, query,
		rec.OwnerID, string(rec.Scope), rec.Record.ID, rec.BoardID, string(rec.Record.Entity), rec.Record.Deleted, payload,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	rec.Version = version
	return version, nil
}

func (r *PostgresRepository) ListPrivate(ctx context.Context, ownerID string, since int64, limit int) ([]models.StoredRecord, error) {
	query := `
		SELECT ` + columns + `
		FROM records r
		WHERE r.owner_id = $1 AND r.scope = 'private' AND r.version > $2
		ORDER BY r.version
		LIMIT $3
	`
	return r.list(ctx, query, ownerID, since, limit)
}

func (r *PostgresRepository) ListShared(ctx context.Context, userID string, since int64, limit int) ([]models.StoredRecord, error) {
	query := `
		SELECT ` + columns + `
		FROM records r
		WHERE r.scope = 'shared' AND r.version > $2
		  AND (r.owner_id = $1 OR ` + joined + `)
		ORDER BY r.version
		LIMIT $3
	`
	return r.list(ctx, query, userID, since, limit)
}

func (r *PostgresRepository) one(ctx context.Context, query string, args ...any) (*models.StoredRecord, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &rec, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]models.StoredRecord, error) {
	out, err := dbx.QueryAll(ctx, r.db, scanRecord, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func scanRecord(row dbx.Scanner) (models.StoredRecord, error) {
	var (
		rec     models.StoredRecord
		scope   string
		payload []byte
	)
	if err := row.Scan(&rec.OwnerID, &scope, &rec.BoardID, &rec.Version, &payload, &rec.UpdatedAt); err != nil {
		return rec, err
	}
	rec.Scope = core.Scope(scope)
	if err := json.Unmarshal(payload, &rec.Record); err != nil {
		return rec, fmt.Errorf("decode payload: %w", err)
	}
	return rec, nil
}

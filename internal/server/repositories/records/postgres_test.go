package records

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/boardkeeper/internal/common"
	core "github.com/dmitrijs2005/boardkeeper/internal/models"
	"github.com/dmitrijs2005/boardkeeper/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var recordCols = []string{"owner_id", "scope", "board_id", "version", "payload", "updated_at"}

func TestGet_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	payload := []byte(`{"id":"i1","entity":"item","fields":{"name":"Note","board_id":"b1"},"clock":{"name":5}}`)
	mock.ExpectQuery(`(?s)FROM\s+records\s+r\s+WHERE\s+r\.owner_id\s*=\s*\$1\s+AND\s+r\.scope\s*=\s*\$2\s+AND\s+r\.id\s*=\s*\$3\s+FOR\s+UPDATE`).
		WithArgs("u1", "private", "i1").
		WillReturnRows(sqlmock.NewRows(recordCols).AddRow("u1", "private", "b1", int64(7), payload, time.Now()))

	got, err := repo.Get(context.Background(), "u1", core.ScopePrivate, "i1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Version != 7 || got.Scope != core.ScopePrivate || got.BoardID != "b1" || got.Record.Entity != core.EntityItem {
		t.Fatalf("unexpected record: %+v", got)
	}
	if name, _ := got.Record.String(core.FieldName); name != "Note" {
		t.Fatalf("name = %q", name)
	}
	if got.Record.Clock["name"] != 5 {
		t.Fatalf("clock = %v", got.Record.Clock)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)FROM\s+records`).
		WithArgs("u1", "shared", "missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "u1", core.ScopeShared, "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGet_BadPayload(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)FROM\s+records`).
		WillReturnRows(sqlmock.NewRows(recordCols).AddRow("u1", "private", "b1", int64(1), []byte(`{`), time.Now()))

	_, err := repo.Get(context.Background(), "u1", core.ScopePrivate, "i1")
	if err == nil || !strings.Contains(err.Error(), "decode payload") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestFindShared(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)WHERE\s+r\.scope\s*=\s*'shared'\s+AND\s+r\.id\s*=\s*\$2.*r\.owner_id\s*=\s*\$1\s+OR\s+EXISTS.*share_participants.*FOR\s+UPDATE`).
		WithArgs("u2", "i1").
		WillReturnRows(sqlmock.NewRows(recordCols).AddRow("u1", "shared", "b1", int64(3), []byte(`{"id":"i1","entity":"item"}`), time.Now()))

	got, err := repo.FindShared(context.Background(), "u2", "i1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.OwnerID != "u1" || got.Scope != core.ScopeShared {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestSave_ReturnsVersion(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rec := &models.StoredRecord{
		OwnerID: "u1",
		Scope:   core.ScopeShared,
		BoardID: "b1",
		Record:  core.Record{ID: "b1", Entity: core.EntityBoard, Fields: map[string]any{core.FieldName: "Trip"}},
	}
	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+records\b.*nextval\('record_versions'\).*ON\s+CONFLICT\s+\(owner_id,\s*scope,\s*id\)\s+DO\s+UPDATE.*RETURNING\s+version`).
		WithArgs("u1", "shared", "b1", "b1", "board", false, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(42)))

	v, err := repo.Save(context.Background(), rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 || rec.Version != 42 {
		t.Fatalf("version = %d, rec.Version = %d", v, rec.Version)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSave_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+records`).
		WillReturnError(errors.New("db down"))

	_, err := repo.Save(context.Background(), &models.StoredRecord{OwnerID: "u1", Scope: core.ScopePrivate, Record: core.Record{ID: "x", Entity: core.EntityTag}})
	if err == nil || !strings.Contains(err.Error(), "db down") {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestListPrivate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)WHERE\s+r\.owner_id\s*=\s*\$1\s+AND\s+r\.scope\s*=\s*'private'\s+AND\s+r\.version\s*>\s*\$2\s+ORDER\s+BY\s+r\.version\s+LIMIT\s+\$3`).
		WithArgs("u1", int64(3), 2).
		WillReturnRows(sqlmock.NewRows(recordCols).
			AddRow("u1", "private", "b1", int64(4), []byte(`{"id":"b1","entity":"board"}`), now).
			AddRow("u1", "private", "b1", int64(6), []byte(`{"id":"t1","entity":"tag"}`), now))

	got, err := repo.ListPrivate(context.Background(), "u1", 3, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Version != 4 || got[1].Record.ID != "t1" {
		t.Fatalf("unexpected rows: %+v", got)
	}
}

func TestListShared(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)WHERE\s+r\.scope\s*=\s*'shared'\s+AND\s+r\.version\s*>\s*\$2.*EXISTS.*ORDER\s+BY\s+r\.version`).
		WithArgs("u2", int64(0), 10).
		WillReturnRows(sqlmock.NewRows(recordCols).
			AddRow("u1", "shared", "b1", int64(9), []byte(`{"id":"i1","entity":"item"}`), time.Now()))

	got, err := repo.ListShared(context.Background(), "u2", 0, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].OwnerID != "u1" {
		t.Fatalf("unexpected rows: %+v", got)
	}
}

func TestListShared_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)FROM\s+records\s+r`).WillReturnError(errors.New("boom"))

	if _, err := repo.ListShared(context.Background(), "u2", 0, 10); err == nil || !strings.Contains(err.Error(), "db error") {
		t.Fatalf("expected db error, got %v", err)
	}
}

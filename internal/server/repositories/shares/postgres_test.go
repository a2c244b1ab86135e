package shares

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/boardkeeper/internal/common"
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

var shareCols = []string{"id", "owner_id", "board_id", "title", "thumbnail", "created_at"}

func TestUpsert_FillsIDAndCreatedAt(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+shares\b.*ON\s+CONFLICT\s+\(owner_id,\s*board_id\)\s+DO\s+UPDATE.*RETURNING\s+id,\s*created_at`).
		WithArgs("u1", "b1", "Trip", []byte("jpg")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("s1", created))

	s := &models.Share{OwnerID: "u1", BoardID: "b1", Title: "Trip", Thumbnail: []byte("jpg")}
	if err := repo.Upsert(context.Background(), s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID != "s1" || !s.CreatedAt.Equal(created) {
		t.Fatalf("unexpected share: %+v", s)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpsert_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+shares`).WillReturnError(errors.New("db down"))

	err := repo.Upsert(context.Background(), &models.Share{OwnerID: "u1", BoardID: "b1"})
	if err == nil || !strings.Contains(err.Error(), "db down") {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGet(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)FROM\s+shares\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(shareCols).AddRow("s1", "u1", "b1", "Trip", nil, time.Now()))

	got, err := repo.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.OwnerID != "u1" || got.BoardID != "b1" || got.Title != "Trip" {
		t.Fatalf("unexpected share: %+v", got)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)FROM\s+shares`).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	if _, err := repo.Get(context.Background(), "nope"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindForParticipant(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)FROM\s+shares\s+s\s+JOIN\s+share_participants\s+p.*WHERE\s+p\.user_id\s*=\s*\$1\s+AND\s+s\.board_id\s*=\s*\$2`).
		WithArgs("u2", "b1").
		WillReturnRows(sqlmock.NewRows(shareCols).AddRow("s1", "u1", "b1", "Trip", []byte("x"), time.Now()))

	got, err := repo.FindForParticipant(context.Background(), "u2", "b1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "s1" || got.OwnerID != "u1" {
		t.Fatalf("unexpected share: %+v", got)
	}
}

func TestAddParticipant(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)INSERT\s+INTO\s+share_participants.*ON\s+CONFLICT\s+DO\s+NOTHING`).
		WithArgs("s1", "u2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.AddParticipant(context.Background(), "s1", "u2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAddParticipant_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT`).WillReturnError(errors.New("fk violation"))

	if err := repo.AddParticipant(context.Background(), "s9", "u2"); err == nil || !strings.Contains(err.Error(), "fk violation") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

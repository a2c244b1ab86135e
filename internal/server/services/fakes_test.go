package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/boardkeeper/internal/common"
	"github.com/dmitrijs2005/boardkeeper/internal/dbx"
	core "github.com/dmitrijs2005/boardkeeper/internal/models"
	"github.com/dmitrijs2005/boardkeeper/internal/server/config"
	"github.com/dmitrijs2005/boardkeeper/internal/server/models"
	"github.com/dmitrijs2005/boardkeeper/internal/server/repositories/records"
	"github.com/dmitrijs2005/boardkeeper/internal/server/repositories/shares"
)

// memDB backs both fake repositories so shared-scope lookups can see
// share membership.
type memDB struct {
	records map[string]models.StoredRecord
	version int64
	shares  map[string]*models.Share
	members map[string]map[string]bool
	nextID  int
	saveErr error
}

func newMemDB() *memDB {
	return &memDB{
		records: map[string]models.StoredRecord{},
		shares:  map[string]*models.Share{},
		members: map[string]map[string]bool{},
	}
}

func recordKey(owner string, scope core.Scope, id string) string {
	return owner + "|" + string(scope) + "|" + id
}

func (m *memDB) joined(userID, ownerID, boardID string) bool {
	for _, s := range m.shares {
		if s.OwnerID == ownerID && s.BoardID == boardID && m.members[s.ID][userID] {
			return true
		}
	}
	return false
}

func (m *memDB) visibleShared(userID string, r models.StoredRecord) bool {
	return r.Scope == core.ScopeShared && (r.OwnerID == userID || m.joined(userID, r.OwnerID, r.BoardID))
}

type memManager struct{ *memDB }

func (m memManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m memManager) Records(dbx.DBTX) records.Repository          { return memRecords{m.memDB} }
func (m memManager) Shares(dbx.DBTX) shares.Repository            { return memShares{m.memDB} }

type memRecords struct{ *memDB }

func (r memRecords) Get(_ context.Context, ownerID string, scope core.Scope, id string) (*models.StoredRecord, error) {
	rec, ok := r.records[recordKey(ownerID, scope, id)]
	if !ok {
		return nil, common.ErrNotFound
	}
	rec.Record = rec.Record.Clone()
	return &rec, nil
}

func (r memRecords) FindShared(_ context.Context, userID, id string) (*models.StoredRecord, error) {
	for _, rec := range r.records {
		if rec.Record.ID == id && r.visibleShared(userID, rec) {
			rec.Record = rec.Record.Clone()
			return &rec, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r memRecords) Save(_ context.Context, rec *models.StoredRecord) (int64, error) {
	if r.saveErr != nil {
		return 0, r.saveErr
	}
	r.version++
	rec.Version = r.version
	rec.UpdatedAt = time.Now()
	stored := *rec
	stored.Record = rec.Record.Clone()
	r.records[recordKey(rec.OwnerID, rec.Scope, rec.Record.ID)] = stored
	return rec.Version, nil
}

func (r memRecords) list(since int64, limit int, keep func(models.StoredRecord) bool) []models.StoredRecord {
	var out []models.StoredRecord
	for _, rec := range r.records {
		if rec.Version > since && keep(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r memRecords) ListPrivate(_ context.Context, ownerID string, since int64, limit int) ([]models.StoredRecord, error) {
	return r.list(since, limit, func(rec models.StoredRecord) bool {
		return rec.OwnerID == ownerID && rec.Scope == core.ScopePrivate
	}), nil
}

func (r memRecords) ListShared(_ context.Context, userID string, since int64, limit int) ([]models.StoredRecord, error) {
	return r.list(since, limit, func(rec models.StoredRecord) bool {
		return r.visibleShared(userID, rec)
	}), nil
}

type memShares struct{ *memDB }

func (s memShares) Upsert(_ context.Context, sh *models.Share) error {
	for _, existing := range s.shares {
		if existing.OwnerID == sh.OwnerID && existing.BoardID == sh.BoardID {
			existing.Title, existing.Thumbnail = sh.Title, sh.Thumbnail
			sh.ID, sh.CreatedAt = existing.ID, existing.CreatedAt
			return nil
		}
	}
	s.nextID++
	sh.ID = fmt.Sprintf("share-%d", s.nextID)
	sh.CreatedAt = time.Now()
	cp := *sh
	s.shares[sh.ID] = &cp
	return nil
}

func (s memShares) Get(_ context.Context, id string) (*models.Share, error) {
	sh, ok := s.shares[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *sh
	return &cp, nil
}

func (s memShares) FindForParticipant(_ context.Context, userID, boardID string) (*models.Share, error) {
	for _, sh := range s.shares {
		if sh.BoardID == boardID && s.members[sh.ID][userID] {
			cp := *sh
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (s memShares) AddParticipant(_ context.Context, shareID, userID string) error {
	if _, ok := s.shares[shareID]; !ok {
		return fmt.Errorf("db error: foreign key violation")
	}
	if s.members[shareID] == nil {
		s.members[shareID] = map[string]bool{}
	}
	s.members[shareID][userID] = true
	return nil
}

func newTxDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func expectCommits(mock sqlmock.Sqlmock, n int) {
	for range n {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
}

func testConfig() *config.Config {
	return &config.Config{SecretKey: "k", PageSize: 100, ShareTokenValidityDuration: time.Hour}
}

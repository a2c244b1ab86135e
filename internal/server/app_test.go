package server

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/boardkeeper/internal/dbx"
	"github.com/dmitrijs2005/boardkeeper/internal/logging"
	"github.com/dmitrijs2005/boardkeeper/internal/server/config"
	"github.com/dmitrijs2005/boardkeeper/internal/server/repositories/records"
	"github.com/dmitrijs2005/boardkeeper/internal/server/repositories/shares"
	"github.com/stretchr/testify/require"
)

type fakeManager struct {
	migrateErr error
	migrated   bool
}

func (f *fakeManager) RunMigrations(context.Context, *sql.DB) error {
	f.migrated = true
	return f.migrateErr
}
func (f *fakeManager) Records(db dbx.DBTX) records.Repository {
	return records.NewPostgresRepository(db)
}
func (f *fakeManager) Shares(db dbx.DBTX) shares.Repository { return shares.NewPostgresRepository(db) }

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func testConfig() *config.Config {
	var c config.Config
	c.LoadDefaults()
	c.EndpointAddrGRPC = "127.0.0.1:0"
	return &c
}

func TestNewApp_MigratesSchema(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectPing()
	m := &fakeManager{}

	app, err := newApp(context.Background(), testConfig(), logging.Nop(), db, m)
	require.NoError(t, err)
	require.True(t, m.migrated)
	require.NotNil(t, app.recordService)
	require.NotNil(t, app.shareService)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewApp_Failures(t *testing.T) {
	t.Run("ping", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
		m := &fakeManager{}

		_, err := newApp(context.Background(), testConfig(), logging.Nop(), db, m)
		require.ErrorContains(t, err, "db ping")
		require.False(t, m.migrated)
	})
	t.Run("migrations", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectPing()

		_, err := newApp(context.Background(), testConfig(), logging.Nop(), db, &fakeManager{migrateErr: errors.New("dirty")})
		require.ErrorContains(t, err, "migrations: dirty")
	})
	t.Run("open", func(t *testing.T) {
		orig := openDB
		defer func() { openDB = orig }()
		openDB = func(string) (*sql.DB, error) { return nil, errors.New("bad dsn") }

		_, err := NewApp(context.Background(), testConfig())
		require.ErrorContains(t, err, "db init error")
	})
}

func TestRun_StopsOnCancel(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectPing()
	app, err := newApp(context.Background(), testConfig(), logging.Nop(), db, &fakeManager{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_ListenFailure(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectPing()
	cfg := testConfig()
	cfg.EndpointAddrGRPC = "256.0.0.1:bad"
	app, err := newApp(context.Background(), cfg, logging.Nop(), db, &fakeManager{})
	require.NoError(t, err)

	require.Error(t, app.Run(context.Background()))
}

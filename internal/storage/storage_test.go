package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bandaid/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := zerolog.New(io.Discard)
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testBlobStore(t *testing.T, s BlobStore) {
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "@bandaid_gigs", []byte(`[]`)))
	got, err := s.Get(ctx, "@bandaid_gigs")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), got)

	require.NoError(t, s.Set(ctx, "@bandaid_gigs", []byte(`[{"id":"1"}]`)))
	got, err = s.Get(ctx, "@bandaid_gigs")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[{"id":"1"}]`), got)

	require.NoError(t, s.Delete(ctx, "@bandaid_gigs"))
	_, err = s.Get(ctx, "@bandaid_gigs")
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting again is a no-op
	assert.NoError(t, s.Delete(ctx, "@bandaid_gigs"))
}

func TestMemoryStore(t *testing.T) {
	testBlobStore(t, NewMemoryStore())
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	buf := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", buf))
	buf[0] = 'x'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestSQLiteStore(t *testing.T) {
	testBlobStore(t, newTestSQLite(t))
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.New(io.Discard)
	path := filepath.Join(t.TempDir(), "persist.db")

	s, err := NewSQLiteStore(path, &logger)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path, &logger)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestBackupService(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.New(io.Discard)
	store := newTestSQLite(t)
	require.NoError(t, store.Set(ctx, "k", []byte("v")))

	backupDir := filepath.Join(t.TempDir(), "backups")
	svc := NewBackupService(store, config.BackupConfig{
		Enabled:       true,
		Schedule:      "0 3 * * *",
		StoragePath:   backupDir,
		RetentionDays: 7,
	}, &logger)
	svc.now = func() time.Time { return time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC) }

	require.NoError(t, svc.PerformBackup(ctx))
	backupPath := filepath.Join(backupDir, "backup_20261019_030000.db")
	assert.FileExists(t, backupPath)

	restored, err := NewSQLiteStore(backupPath, &logger)
	require.NoError(t, err)
	defer restored.Close()
	got, err := restored.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	old := filepath.Join(backupDir, "backup_old.db")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o600))
	oldTime := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(old, oldTime, oldTime))

	svc.CleanupOldBackups()
	assert.NoFileExists(t, old)
}

func TestBackupService_BadSchedule(t *testing.T) {
	logger := zerolog.New(io.Discard)
	svc := NewBackupService(newTestSQLite(t), config.BackupConfig{Enabled: true, Schedule: "whenever"}, &logger)
	assert.Error(t, svc.Start(context.Background()))
}

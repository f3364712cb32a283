package gigs

import (
	"context"
	"errors"
	"io"
	"testing"

	"bandaid/internal/models"
	"bandaid/internal/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	*storage.MemoryStore
	getErr error
	setErr error
}

func (f *failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.MemoryStore.Get(ctx, key)
}

func (f *failingStore) Set(ctx context.Context, key string, value []byte) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.MemoryStore.Set(ctx, key, value)
}

func gig(id, date, clock string) models.Gig {
	d, _ := models.ParseDate(date)
	c, _ := models.ParseClock(clock)
	return models.Gig{ID: id, Title: "Gig " + id, Date: d, Time: c, ReminderSettings: models.DefaultReminderSettings()}
}

func newRepo(store storage.BlobStore) *Repository {
	return NewRepository(store, zerolog.New(io.Discard))
}

func ids(gigs []models.Gig) []string {
	out := make([]string, 0, len(gigs))
	for _, g := range gigs {
		out = append(out, g.ID)
	}
	return out
}

func TestRepository_EmptyStore(t *testing.T) {
	repo := newRepo(storage.NewMemoryStore())

	got := repo.GetAll(context.Background())
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRepository_UpsertKeepsSortedOrder(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(storage.NewMemoryStore())

	require.NoError(t, repo.Upsert(ctx, gig("c", "2026-12-01", "20:00")))
	require.NoError(t, repo.Upsert(ctx, gig("a", "2026-11-01", "21:00")))
	require.NoError(t, repo.Upsert(ctx, gig("b", "2026-11-01", "19:30")))

	assert.Equal(t, []string{"b", "a", "c"}, ids(repo.GetAll(ctx)))

	moved := gig("c", "2026-10-30", "08:00")
	require.NoError(t, repo.Upsert(ctx, moved))
	all := repo.GetAll(ctx)
	assert.Equal(t, []string{"c", "b", "a"}, ids(all))
	assert.Len(t, all, 3)
}

func TestRepository_Get(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(storage.NewMemoryStore())
	require.NoError(t, repo.Upsert(ctx, gig("a", "2026-11-01", "21:00")))

	g, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Gig a", g.Title)

	_, err = repo.Get(ctx, "zzz")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_Remove(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(storage.NewMemoryStore())
	require.NoError(t, repo.Upsert(ctx, gig("a", "2026-11-01", "21:00")))
	require.NoError(t, repo.Upsert(ctx, gig("b", "2026-11-02", "21:00")))

	require.NoError(t, repo.Remove(ctx, "a"))
	assert.Equal(t, []string{"b"}, ids(repo.GetAll(ctx)))

	// unknown ids are ignored
	require.NoError(t, repo.Remove(ctx, "a"))
	assert.Equal(t, []string{"b"}, ids(repo.GetAll(ctx)))
}

func TestRepository_SortsUnorderedBlob(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, StorageKey, []byte(`[
		{"id":"late","title":"Late","date":"2026-12-24","time":"22:00","reminderSettings":{"enabled":false}},
		{"id":"early","title":"Early","date":"2026-01-02","time":"09:00","reminderSettings":{"enabled":false}}
	]`)))

	assert.Equal(t, []string{"early", "late"}, ids(newRepo(store).GetAll(ctx)))
}

func TestRepository_MalformedBlobReadsEmpty(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, StorageKey, []byte(`{not json`)))
	repo := newRepo(store)

	assert.Empty(t, repo.GetAll(ctx))

	require.NoError(t, repo.Upsert(ctx, gig("a", "2026-11-01", "21:00")))
	assert.Equal(t, []string{"a"}, ids(repo.GetAll(ctx)))
}

func TestRepository_ReadFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk on fire")
	store := &failingStore{MemoryStore: storage.NewMemoryStore()}
	repo := newRepo(store)
	require.NoError(t, repo.Upsert(ctx, gig("a", "2026-11-01", "21:00")))

	store.getErr = boom
	assert.Empty(t, repo.GetAll(ctx))
	assert.ErrorIs(t, repo.Upsert(ctx, gig("b", "2026-11-02", "21:00")), boom)
	assert.ErrorIs(t, repo.Remove(ctx, "a"), boom)

	// nothing was overwritten
	store.getErr = nil
	assert.Equal(t, []string{"a"}, ids(repo.GetAll(ctx)))
}

func TestRepository_WriteFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("read-only")
	store := &failingStore{MemoryStore: storage.NewMemoryStore(), setErr: boom}
	repo := newRepo(store)

	assert.ErrorIs(t, repo.Upsert(ctx, gig("a", "2026-11-01", "21:00")), boom)
}

func TestRepository_RolloverLedger(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	repo := newRepo(store)

	_, ok := repo.RolloverOf(ctx, "src")
	assert.False(t, ok)

	require.NoError(t, repo.Upsert(ctx, gig("src", "2026-10-01", "20:00")))
	require.NoError(t, repo.RecordRollover(ctx, "src", "next"))

	next, ok := repo.RolloverOf(ctx, "src")
	require.True(t, ok)
	assert.Equal(t, "next", next)

	require.NoError(t, repo.Remove(ctx, "src"))
	_, ok = repo.RolloverOf(ctx, "src")
	assert.False(t, ok)

	_, err := store.Get(ctx, RolloverKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

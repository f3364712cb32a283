package recordings

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bandaid/internal/storage"
)

var baseTime = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "recordings")
	s := NewStore(storage.NewMemoryStore(), dir, zerolog.New(io.Discard))
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("rec-%d", n)
	}
	tick := 0
	s.now = func() time.Time {
		tick++
		return baseTime.Add(time.Duration(tick) * time.Minute)
	}
	return s, dir
}

func TestStore_CreateNewestFirst(t *testing.T) {
	ctx := context.Background()
	s, dir := newTestStore(t)

	first, err := s.Create(ctx, "  Soundcheck ", "", 61000)
	require.NoError(t, err)
	assert.Equal(t, "Soundcheck", first.Title)
	assert.Equal(t, filepath.Join(dir, "rec-1.m4a"), first.URI)
	assert.Equal(t, int64(61000), first.Duration)

	second, err := s.Create(ctx, "Bridge idea", "bridge.wav", 12000)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bridge.wav"), second.URI)

	all := s.All(ctx)
	require.Len(t, all, 2)
	assert.Equal(t, "rec-2", all[0].ID)
	assert.Equal(t, "rec-1", all[1].ID)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestStore_CreateValidation(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.Create(ctx, " ", "", 0)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = s.Create(ctx, "Take", "", -1)
	assert.ErrorIs(t, err, ErrInvalid)

	for _, name := range []string{"../escape.m4a", "sub/take.m4a", ".."} {
		_, err = s.Create(ctx, "Take", name, 0)
		assert.ErrorIs(t, err, ErrInvalid, name)
	}
	assert.Empty(t, s.All(ctx))
}

func TestStore_SaveUpsertsByID(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	rec, err := s.Create(ctx, "Verse", "", 1000)
	require.NoError(t, err)
	_, err = s.Create(ctx, "Chorus", "", 2000)
	require.NoError(t, err)

	changed := *rec
	changed.Title = "Verse (take 2)"
	changed.CreatedAt = time.Time{}
	saved, err := s.Save(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, rec.CreatedAt, saved.CreatedAt)
	assert.True(t, saved.UpdatedAt.After(rec.UpdatedAt))

	all := s.All(ctx)
	require.Len(t, all, 2)
	assert.Equal(t, "Chorus", all[0].Title)
	assert.Equal(t, "Verse (take 2)", all[1].Title)

	// An older createdAt sorts behind newer recordings.
	imported, err := s.Save(ctx, Recording{Title: "Old demo", URI: "/elsewhere/demo.mp3", CreatedAt: baseTime.Add(-24 * time.Hour)})
	require.NoError(t, err)
	all = s.All(ctx)
	require.Len(t, all, 3)
	assert.Equal(t, imported.ID, all[2].ID)
}

func TestStore_Update(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	rec, err := s.Create(ctx, "Intro", "", 500)
	require.NoError(t, err)

	title := "Intro (final)"
	var duration int64 = 750
	updated, err := s.Update(ctx, rec.ID, Update{Title: &title, Duration: &duration})
	require.NoError(t, err)
	assert.Equal(t, "Intro (final)", updated.Title)
	assert.Equal(t, int64(750), updated.Duration)
	assert.Equal(t, rec.CreatedAt, updated.CreatedAt)

	_, err = s.Update(ctx, "missing", Update{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DeleteRemovesAudioFile(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	rec, err := s.Create(ctx, "Jam", "", 3000)
	require.NoError(t, err)
	n, err := s.WriteAudio(ctx, rec.ID, bytes.NewReader([]byte("RIFFdata")))
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
	_, err = os.Stat(rec.URI)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, rec.ID))
	_, err = os.Stat(rec.URI)
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, s.All(ctx))

	assert.ErrorIs(t, s.Delete(ctx, rec.ID), ErrNotFound)
}

func TestStore_DeleteWithoutAudioFile(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	rec, err := s.Create(ctx, "Never recorded", "", 0)
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, rec.ID))
	assert.Empty(t, s.All(ctx))
}

func TestStore_DeleteLeavesFilesOutsideDir(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	outside := filepath.Join(t.TempDir(), "keep.m4a")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))

	rec, err := s.Save(ctx, Recording{Title: "Imported", URI: outside})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, rec.ID))

	_, err = os.Stat(outside)
	assert.NoError(t, err)
	assert.Empty(t, s.All(ctx))
}

func TestStore_OpenAudio(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	rec, err := s.Create(ctx, "Riff", "", 0)
	require.NoError(t, err)

	_, _, err = s.OpenAudio(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.WriteAudio(ctx, rec.ID, bytes.NewReader([]byte("first")))
	require.NoError(t, err)
	_, err = s.WriteAudio(ctx, rec.ID, bytes.NewReader([]byte("second")))
	require.NoError(t, err)

	f, got, err := s.OpenAudio(ctx, rec.ID)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
	assert.Equal(t, rec.ID, got.ID)
}

func TestStore_MalformedListReadsEmpty(t *testing.T) {
	ctx := context.Background()
	blobs := storage.NewMemoryStore()
	require.NoError(t, blobs.Set(ctx, StorageKey, []byte(`{oops`)))

	s := NewStore(blobs, t.TempDir(), zerolog.New(io.Discard))
	assert.Empty(t, s.All(ctx))
}

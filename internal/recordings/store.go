package recordings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bandaid/internal/storage"
)

// DefaultExt is the extension given to audio files when no file name is supplied.
const DefaultExt = ".m4a"

var validate = validator.New()

// Store manages the recording list and the audio directory.
type Store struct {
	blobs  storage.BlobStore
	dir    string
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string
	mu     sync.Mutex
}

func NewStore(blobs storage.BlobStore, dir string, logger zerolog.Logger) *Store {
	return &Store{
		blobs:  blobs,
		dir:    filepath.Clean(dir),
		logger: logger.With().Str("component", "recordings").Logger(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// All returns every recording, newest first.
func (s *Store) All(ctx context.Context) []Recording {
	recs, err := storage.LoadList[Recording](ctx, s.blobs, StorageKey)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error loading recordings")
		return []Recording{}
	}
	sortNewestFirst(recs)
	return recs
}

func (s *Store) Get(ctx context.Context, id string) (*Recording, error) {
	for _, r := range s.All(ctx) {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

// Create registers a recording whose audio lives at fileName inside the
// recordings directory. An empty fileName becomes "<id>.m4a".
func (s *Store) Create(ctx context.Context, title, fileName string, duration int64) (*Recording, error) {
	id := s.newID()
	if fileName == "" {
		fileName = id + DefaultExt
	}
	uri, err := s.FilePath(fileName)
	if err != nil {
		return nil, err
	}
	return s.Save(ctx, Recording{ID: id, Title: title, URI: uri, Duration: duration})
}

// Save inserts rec or replaces the recording with the same ID, keeping the
// list ordered newest first.
func (s *Store) Save(ctx context.Context, rec Recording) (*Recording, error) {
	rec.Title = strings.TrimSpace(rec.Title)
	if rec.ID == "" {
		rec.ID = s.newID()
	}
	rec.UpdatedAt = s.now()
	if err := validateStruct(rec); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := storage.LoadList[Recording](ctx, s.blobs, StorageKey)
	if err != nil {
		return nil, fmt.Errorf("save recording: %w", err)
	}
	i := slices.IndexFunc(recs, func(r Recording) bool { return r.ID == rec.ID })
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.UpdatedAt
		if i >= 0 {
			rec.CreatedAt = recs[i].CreatedAt
		}
	}
	if i >= 0 {
		recs[i] = rec
	} else {
		recs = append(recs, rec)
	}
	sortNewestFirst(recs)

	if err := storage.SaveList(ctx, s.blobs, StorageKey, recs); err != nil {
		return nil, fmt.Errorf("save recording: %w", err)
	}
	return &rec, nil
}

func (s *Store) Update(ctx context.Context, id string, upd Update) (*Recording, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Title != nil {
		rec.Title = *upd.Title
	}
	if upd.Duration != nil {
		rec.Duration = *upd.Duration
	}
	return s.Save(ctx, *rec)
}

// Delete removes the recording and its audio file. A file that is already
// gone is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := storage.LoadList[Recording](ctx, s.blobs, StorageKey)
	if err != nil {
		return fmt.Errorf("delete recording: %w", err)
	}
	i := slices.IndexFunc(recs, func(r Recording) bool { return r.ID == id })
	if i < 0 {
		return ErrNotFound
	}

	if err := s.removeFile(recs[i].URI); err != nil {
		return fmt.Errorf("delete recording %s: %w", id, err)
	}

	recs = slices.Delete(recs, i, i+1)
	if err := storage.SaveList(ctx, s.blobs, StorageKey, recs); err != nil {
		return fmt.Errorf("delete recording: %w", err)
	}
	s.logger.Info().Str("recording_id", id).Msg("Recording deleted")
	return nil
}

// FilePath returns where the audio file called name lives, creating the
// recordings directory if needed.
func (s *Store) FilePath(name string) (string, error) {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return "", fmt.Errorf("%w: bad file name %q", ErrInvalid, name)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create recordings dir: %w", err)
	}
	return filepath.Join(s.dir, name), nil
}

// WriteAudio replaces the recording's audio file with the contents of r.
func (s *Store) WriteAudio(ctx context.Context, id string, r io.Reader) (int64, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if !s.inDir(rec.URI) {
		return 0, fmt.Errorf("%w: audio file is outside the recordings directory", ErrInvalid)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return 0, fmt.Errorf("create recordings dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("write audio: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("write audio: %w", err)
	}
	if err := os.Rename(tmp.Name(), rec.URI); err != nil {
		return 0, fmt.Errorf("write audio: %w", err)
	}
	return n, nil
}

// OpenAudio opens the recording's audio file for reading.
func (s *Store) OpenAudio(ctx context.Context, id string) (*os.File, *Recording, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !s.inDir(rec.URI) {
		return nil, nil, fmt.Errorf("%w: audio file is outside the recordings directory", ErrInvalid)
	}
	f, err := os.Open(rec.URI)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return f, rec, nil
}

// removeFile deletes path if it is inside the recordings directory.
func (s *Store) removeFile(path string) error {
	if !s.inDir(path) {
		s.logger.Warn().Str("uri", path).Msg("Audio file is outside the recordings directory; leaving it")
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) inDir(path string) bool {
	rel, err := filepath.Rel(s.dir, filepath.Clean(path))
	if err != nil || rel == "." || rel == ".." {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func sortNewestFirst(recs []Recording) {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].CreatedAt.After(recs[j].CreatedAt) })
}

func validateStruct(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

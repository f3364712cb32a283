package teleprompter

import (
	"context"
	"fmt"
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

var validate = validator.New()

// Library manages texts and playlists, each list stored under its own key.
type Library struct {
	blobs  storage.BlobStore
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string
	mu     sync.Mutex
}

func NewLibrary(blobs storage.BlobStore, logger zerolog.Logger) *Library {
	return &Library{
		blobs:  blobs,
		logger: logger.With().Str("component", "teleprompter").Logger(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Texts returns all texts in display order.
func (l *Library) Texts(ctx context.Context) []Text {
	texts, err := storage.LoadList[Text](ctx, l.blobs, TextsKey)
	if err != nil {
		l.logger.Error().Err(err).Msg("Error loading texts")
		return []Text{}
	}
	sort.SliceStable(texts, func(i, j int) bool { return texts[i].Order < texts[j].Order })
	return texts
}

func (l *Library) Text(ctx context.Context, id string) (*Text, error) {
	for _, t := range l.Texts(ctx) {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, ErrTextNotFound
}

// AddText stores a new text. Zero scroll speed and font size take the defaults.
func (l *Library) AddText(ctx context.Context, title, content string, scrollSpeed, fontSize int) (*Text, error) {
	now := l.now()
	text := Text{
		ID:           l.newID(),
		Title:        strings.TrimSpace(title),
		Content:      content,
		ScrollSpeed:  scrollSpeed,
		FontSize:     fontSize,
		DateCreated:  now,
		DateModified: now,
	}
	if text.ScrollSpeed == 0 {
		text.ScrollSpeed = DefaultScrollSpeed
	}
	if text.FontSize == 0 {
		text.FontSize = DefaultFontSize
	}
	if err := validateStruct(text); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	texts, err := storage.LoadList[Text](ctx, l.blobs, TextsKey)
	if err != nil {
		return nil, fmt.Errorf("add text: %w", err)
	}
	text.Order = nextOrder(texts, func(t Text) int { return t.Order })
	texts = append(texts, text)
	if err := storage.SaveList(ctx, l.blobs, TextsKey, texts); err != nil {
		return nil, fmt.Errorf("add text: %w", err)
	}
	return &text, nil
}

func (l *Library) UpdateText(ctx context.Context, id string, upd TextUpdate) (*Text, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	texts, err := storage.LoadList[Text](ctx, l.blobs, TextsKey)
	if err != nil {
		return nil, fmt.Errorf("update text: %w", err)
	}
	i := slices.IndexFunc(texts, func(t Text) bool { return t.ID == id })
	if i < 0 {
		return nil, ErrTextNotFound
	}

	t := texts[i]
	if upd.Title != nil {
		t.Title = strings.TrimSpace(*upd.Title)
	}
	if upd.Content != nil {
		t.Content = *upd.Content
	}
	if upd.ScrollSpeed != nil {
		t.ScrollSpeed = *upd.ScrollSpeed
	}
	if upd.FontSize != nil {
		t.FontSize = *upd.FontSize
	}
	if err := validateStruct(t); err != nil {
		return nil, err
	}
	t.DateModified = l.now()
	texts[i] = t

	if err := storage.SaveList(ctx, l.blobs, TextsKey, texts); err != nil {
		return nil, fmt.Errorf("update text: %w", err)
	}
	return &t, nil
}

// DeleteText removes the text and drops it from every playlist.
func (l *Library) DeleteText(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	texts, err := storage.LoadList[Text](ctx, l.blobs, TextsKey)
	if err != nil {
		return fmt.Errorf("delete text: %w", err)
	}
	n := len(texts)
	texts = slices.DeleteFunc(texts, func(t Text) bool { return t.ID == id })
	if len(texts) == n {
		return ErrTextNotFound
	}
	if err := storage.SaveList(ctx, l.blobs, TextsKey, texts); err != nil {
		return fmt.Errorf("delete text: %w", err)
	}

	playlists, err := storage.LoadList[Playlist](ctx, l.blobs, PlaylistsKey)
	if err != nil {
		return fmt.Errorf("delete text: %w", err)
	}
	changed := false
	now := l.now()
	for i := range playlists {
		before := len(playlists[i].TextIDs)
		playlists[i].TextIDs = slices.DeleteFunc(playlists[i].TextIDs, func(tid string) bool { return tid == id })
		if len(playlists[i].TextIDs) != before {
			playlists[i].DateModified = now
			changed = true
		}
	}
	if changed {
		if err := storage.SaveList(ctx, l.blobs, PlaylistsKey, playlists); err != nil {
			return fmt.Errorf("delete text: %w", err)
		}
	}
	return nil
}

// ReorderTexts sets each text's order to its position in ids, which must
// list every stored text exactly once.
func (l *Library) ReorderTexts(ctx context.Context, ids []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	texts, err := storage.LoadList[Text](ctx, l.blobs, TextsKey)
	if err != nil {
		return fmt.Errorf("reorder texts: %w", err)
	}
	reordered, err := reorder(texts, ids, func(t Text) string { return t.ID }, func(t *Text, i int) { t.Order = i })
	if err != nil {
		return err
	}
	return storage.SaveList(ctx, l.blobs, TextsKey, reordered)
}

// Playlists returns all playlists in display order.
func (l *Library) Playlists(ctx context.Context) []Playlist {
	playlists, err := storage.LoadList[Playlist](ctx, l.blobs, PlaylistsKey)
	if err != nil {
		l.logger.Error().Err(err).Msg("Error loading playlists")
		return []Playlist{}
	}
	sort.SliceStable(playlists, func(i, j int) bool { return playlists[i].Order < playlists[j].Order })
	return playlists
}

func (l *Library) Playlist(ctx context.Context, id string) (*Playlist, error) {
	for _, p := range l.Playlists(ctx) {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, ErrPlaylistNotFound
}

// PlaylistTexts resolves the playlist's texts in playlist order, skipping ids
// that no longer exist.
func (l *Library) PlaylistTexts(ctx context.Context, id string) ([]Text, error) {
	p, err := l.Playlist(ctx, id)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Text)
	for _, t := range l.Texts(ctx) {
		byID[t.ID] = t
	}
	out := make([]Text, 0, len(p.TextIDs))
	for _, tid := range p.TextIDs {
		if t, ok := byID[tid]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (l *Library) AddPlaylist(ctx context.Context, name, description string, textIDs []string) (*Playlist, error) {
	now := l.now()
	p := Playlist{
		ID:           l.newID(),
		Name:         strings.TrimSpace(name),
		Description:  strings.TrimSpace(description),
		TextIDs:      dedupe(textIDs),
		DateCreated:  now,
		DateModified: now,
	}
	if err := validateStruct(p); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	playlists, err := storage.LoadList[Playlist](ctx, l.blobs, PlaylistsKey)
	if err != nil {
		return nil, fmt.Errorf("add playlist: %w", err)
	}
	p.Order = nextOrder(playlists, func(p Playlist) int { return p.Order })
	playlists = append(playlists, p)
	if err := storage.SaveList(ctx, l.blobs, PlaylistsKey, playlists); err != nil {
		return nil, fmt.Errorf("add playlist: %w", err)
	}
	return &p, nil
}

func (l *Library) UpdatePlaylist(ctx context.Context, id string, upd PlaylistUpdate) (*Playlist, error) {
	return l.modifyPlaylist(ctx, id, func(p *Playlist) error {
		if upd.Name != nil {
			p.Name = strings.TrimSpace(*upd.Name)
		}
		if upd.Description != nil {
			p.Description = strings.TrimSpace(*upd.Description)
		}
		if upd.TextIDs != nil {
			p.TextIDs = dedupe(*upd.TextIDs)
		}
		return validateStruct(*p)
	})
}

func (l *Library) DeletePlaylist(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	playlists, err := storage.LoadList[Playlist](ctx, l.blobs, PlaylistsKey)
	if err != nil {
		return fmt.Errorf("delete playlist: %w", err)
	}
	n := len(playlists)
	playlists = slices.DeleteFunc(playlists, func(p Playlist) bool { return p.ID == id })
	if len(playlists) == n {
		return ErrPlaylistNotFound
	}
	return storage.SaveList(ctx, l.blobs, PlaylistsKey, playlists)
}

func (l *Library) ReorderPlaylists(ctx context.Context, ids []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	playlists, err := storage.LoadList[Playlist](ctx, l.blobs, PlaylistsKey)
	if err != nil {
		return fmt.Errorf("reorder playlists: %w", err)
	}
	reordered, err := reorder(playlists, ids, func(p Playlist) string { return p.ID }, func(p *Playlist, i int) { p.Order = i })
	if err != nil {
		return err
	}
	return storage.SaveList(ctx, l.blobs, PlaylistsKey, reordered)
}

// AddTextToPlaylist appends textID to the playlist unless it is already there.
func (l *Library) AddTextToPlaylist(ctx context.Context, playlistID, textID string) (*Playlist, error) {
	if _, err := l.Text(ctx, textID); err != nil {
		return nil, err
	}
	return l.modifyPlaylist(ctx, playlistID, func(p *Playlist) error {
		if !slices.Contains(p.TextIDs, textID) {
			p.TextIDs = append(p.TextIDs, textID)
		}
		return nil
	})
}

func (l *Library) RemoveTextFromPlaylist(ctx context.Context, playlistID, textID string) (*Playlist, error) {
	return l.modifyPlaylist(ctx, playlistID, func(p *Playlist) error {
		p.TextIDs = slices.DeleteFunc(p.TextIDs, func(tid string) bool { return tid == textID })
		return nil
	})
}

func (l *Library) modifyPlaylist(ctx context.Context, id string, fn func(*Playlist) error) (*Playlist, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	playlists, err := storage.LoadList[Playlist](ctx, l.blobs, PlaylistsKey)
	if err != nil {
		return nil, fmt.Errorf("update playlist: %w", err)
	}
	i := slices.IndexFunc(playlists, func(p Playlist) bool { return p.ID == id })
	if i < 0 {
		return nil, ErrPlaylistNotFound
	}

	p := playlists[i]
	p.TextIDs = slices.Clone(p.TextIDs)
	if err := fn(&p); err != nil {
		return nil, err
	}
	p.DateModified = l.now()
	playlists[i] = p

	if err := storage.SaveList(ctx, l.blobs, PlaylistsKey, playlists); err != nil {
		return nil, fmt.Errorf("update playlist: %w", err)
	}
	return &p, nil
}

// loadList reads a JSON list. A missing key or malformed blob reads as empty.
func reorder[T any](items []T, ids []string, idOf func(T) string, setOrder func(*T, int)) ([]T, error) {
	if len(ids) != len(items) {
		return nil, fmt.Errorf("%w: expected %d ids, got %d", ErrInvalid, len(items), len(ids))
	}
	byID := make(map[string]T, len(items))
	for _, it := range items {
		byID[idOf(it)] = it
	}
	out := make([]T, 0, len(ids))
	for i, id := range ids {
		it, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: unknown or repeated id %q", ErrInvalid, id)
		}
		delete(byID, id)
		setOrder(&it, i)
		out = append(out, it)
	}
	return out, nil
}

func nextOrder[T any](items []T, orderOf func(T) int) int {
	next := 0
	for _, it := range items {
		if o := orderOf(it); o >= next {
			next = o + 1
		}
	}
	return next
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func validateStruct(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Package gigs persists the gig list as one serialized blob.
package gigs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"bandaid/internal/models"
	"bandaid/internal/storage"

	"github.com/rs/zerolog"
)

const (
	StorageKey  = "@bandaid_gigs"
	RolloverKey = "@bandaid_gig_rollovers"
)

// ErrNotFound is returned when no gig has the requested id.
var ErrNotFound = errors.New("gig not found")

// Repository reads and writes the gig list. Every read and write keeps the list
// sorted ascending by (date, time).
type Repository struct {
	store  storage.BlobStore
	logger zerolog.Logger
	mu     sync.Mutex
}

func NewRepository(store storage.BlobStore, logger zerolog.Logger) *Repository {
	return &Repository{
		store:  store,
		logger: logger.With().Str("component", "gigs").Logger(),
	}
}

// GetAll returns every stored gig. Read failures are logged and yield an empty list.
func (r *Repository) GetAll(ctx context.Context) []models.Gig {
	gigs, err := r.load(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("Error loading gigs")
		return []models.Gig{}
	}
	return gigs
}

// Get returns the gig with the given id.
func (r *Repository) Get(ctx context.Context, id string) (*models.Gig, error) {
	gigs, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range gigs {
		if gigs[i].ID == id {
			g := gigs[i]
			return &g, nil
		}
	}
	return nil, ErrNotFound
}

// Upsert inserts the gig or replaces the stored gig with the same id.
func (r *Repository) Upsert(ctx context.Context, gig models.Gig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	gigs, err := r.load(ctx)
	if err != nil {
		return fmt.Errorf("save gig %s: %w", gig.ID, err)
	}

	replaced := false
	for i := range gigs {
		if gigs[i].ID == gig.ID {
			gigs[i] = gig
			replaced = true
			break
		}
	}
	if !replaced {
		gigs = append(gigs, gig)
	}

	if err := r.write(ctx, gigs); err != nil {
		return fmt.Errorf("save gig %s: %w", gig.ID, err)
	}
	return nil
}

// Remove deletes the gig with the given id. Removing a missing id is not an error.
func (r *Repository) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	gigs, err := r.load(ctx)
	if err != nil {
		return fmt.Errorf("delete gig %s: %w", id, err)
	}

	filtered := gigs[:0]
	for _, g := range gigs {
		if g.ID != id {
			filtered = append(filtered, g)
		}
	}

	if err := r.write(ctx, filtered); err != nil {
		return fmt.Errorf("delete gig %s: %w", id, err)
	}

	if err := r.forgetRollover(ctx, id); err != nil {
		r.logger.Error().Err(err).Str("gig_id", id).Msg("Failed to clear rollover record")
	}
	return nil
}

// load reads the blob. A missing key or an undecodable blob means no gigs;
// only storage failures are returned.
func (r *Repository) load(ctx context.Context) ([]models.Gig, error) {
	data, err := r.store.Get(ctx, StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return []models.Gig{}, nil
		}
		return nil, err
	}

	var gigs []models.Gig
	if err := json.Unmarshal(data, &gigs); err != nil {
		r.logger.Error().Err(err).Msg("Stored gig list is malformed; treating as empty")
		return []models.Gig{}, nil
	}
	if gigs == nil {
		gigs = []models.Gig{}
	}

	models.SortGigs(gigs)
	return gigs, nil
}

func (r *Repository) write(ctx context.Context, gigs []models.Gig) error {
	models.SortGigs(gigs)
	data, err := json.Marshal(gigs)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, StorageKey, data)
}

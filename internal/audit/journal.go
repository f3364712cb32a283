// Package audit keeps a journal of gig activity and mails a monthly report.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"bandaid/internal/events"
	"bandaid/internal/models"
	"bandaid/internal/reminders"
	"bandaid/internal/storage"
)

const StorageKey = "@bandaid_activity"

// Entry is one recorded gig change.
type Entry struct {
	Type    string    `json:"type"`
	GigID   string    `json:"gigId"`
	Title   string    `json:"title,omitempty"`
	GigDate string    `json:"gigDate,omitempty"`
	NextID  string    `json:"nextId,omitempty"`
	At      time.Time `json:"at"`
}

// Journal is an append-only list of entries held in a blob store.
type Journal struct {
	blobs storage.BlobStore
	mu    sync.Mutex
}

func NewJournal(blobs storage.BlobStore) *Journal {
	return &Journal{blobs: blobs}
}

func (j *Journal) Record(ctx context.Context, e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := j.load(ctx)
	if err != nil {
		return err
	}
	return j.write(ctx, append(entries, e))
}

// Between returns the entries recorded in [from, to).
func (j *Journal) Between(ctx context.Context, from, to time.Time) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := j.load(ctx)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range entries {
		if !e.At.Before(from) && e.At.Before(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

// DeleteOlderThan drops entries recorded before cutoff and reports how many went.
func (j *Journal) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := j.load(ctx)
	if err != nil {
		return 0, err
	}
	kept := entries[:0]
	for _, e := range entries {
		if !e.At.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	deleted := len(entries) - len(kept)
	if deleted == 0 {
		return 0, nil
	}
	return deleted, j.write(ctx, kept)
}

func (j *Journal) load(ctx context.Context) ([]Entry, error) {
	data, err := j.blobs.Get(ctx, StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load activity journal: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		// Malformed journal reads as empty.
		return nil, nil
	}
	return entries, nil
}

func (j *Journal) write(ctx context.Context, entries []Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	if err := j.blobs.Set(ctx, StorageKey, data); err != nil {
		return fmt.Errorf("save activity journal: %w", err)
	}
	return nil
}

// Handler records gig events into j. Subscribe it to every gig event type.
func Handler(j *Journal) events.EventHandler {
	return func(ev events.Event) error {
		entry, err := entryFromEvent(ev)
		if err != nil {
			return err
		}
		return j.Record(context.Background(), entry)
	}
}

func entryFromEvent(ev events.Event) (Entry, error) {
	entry := Entry{Type: ev.Type, At: ev.CreatedAt}

	switch ev.Type {
	case events.GigSaved:
		var g models.Gig
		if err := json.Unmarshal(ev.Payload, &g); err != nil {
			return Entry{}, fmt.Errorf("decode %s payload: %w", ev.Type, err)
		}
		entry.GigID, entry.Title, entry.GigDate = g.ID, g.Title, g.Date.String()
	case events.GigDeleted:
		var p struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return Entry{}, fmt.Errorf("decode %s payload: %w", ev.Type, err)
		}
		entry.GigID = p.ID
	case events.GigRolledOver:
		var p reminders.RolloverEvent
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return Entry{}, fmt.Errorf("decode %s payload: %w", ev.Type, err)
		}
		entry.GigID, entry.NextID = p.SourceID, p.Next.ID
		entry.Title, entry.GigDate = p.Next.Title, p.Next.Date.String()
	default:
		return Entry{}, fmt.Errorf("unknown event type %q", ev.Type)
	}
	return entry, nil
}

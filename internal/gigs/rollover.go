package gigs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bandaid/internal/storage"
)

// The rollover ledger maps a past recurring gig's id to the id of the gig that
// replaced it, so a sweep never creates a second successor for the same source.

// RolloverOf returns the successor recorded for sourceID, if any.
func (r *Repository) RolloverOf(ctx context.Context, sourceID string) (string, bool) {
	ledger, err := r.loadLedger(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("Error loading rollover records")
		return "", false
	}
	next, ok := ledger[sourceID]
	return next, ok
}

// RecordRollover stores nextID as the successor of sourceID.
func (r *Repository) RecordRollover(ctx context.Context, sourceID, nextID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ledger, err := r.loadLedger(ctx)
	if err != nil {
		return fmt.Errorf("record rollover %s: %w", sourceID, err)
	}
	ledger[sourceID] = nextID
	return r.writeLedger(ctx, ledger)
}

// ForgetRollover drops the successor recorded for sourceID so the gig can roll
// again once its new date passes.
func (r *Repository) ForgetRollover(ctx context.Context, sourceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.forgetRollover(ctx, sourceID); err != nil {
		return fmt.Errorf("forget rollover %s: %w", sourceID, err)
	}
	return nil
}

// forgetRollover drops the entry for id. Callers hold r.mu.
func (r *Repository) forgetRollover(ctx context.Context, id string) error {
	ledger, err := r.loadLedger(ctx)
	if err != nil {
		return err
	}
	if _, ok := ledger[id]; !ok {
		return nil
	}
	delete(ledger, id)
	return r.writeLedger(ctx, ledger)
}

func (r *Repository) loadLedger(ctx context.Context) (map[string]string, error) {
	data, err := r.store.Get(ctx, RolloverKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return map[string]string{}, nil
		}
		return nil, err
	}

	ledger := map[string]string{}
	if err := json.Unmarshal(data, &ledger); err != nil {
		r.logger.Warn().Err(err).Msg("Rollover records are malformed; starting over")
		return map[string]string{}, nil
	}
	if ledger == nil {
		ledger = map[string]string{}
	}
	return ledger, nil
}

func (r *Repository) writeLedger(ctx context.Context, ledger map[string]string) error {
	if len(ledger) == 0 {
		return r.store.Delete(ctx, RolloverKey)
	}
	data, err := json.Marshal(ledger)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, RolloverKey, data)
}

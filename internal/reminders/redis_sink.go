package reminders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSink keeps registrations in Redis: a sorted set of ids scored by fire
// time in milliseconds, plus a hash of id to JSON payload.
type RedisSink struct {
	client      *redis.Client
	scheduleKey string
	payloadKey  string
	granted     bool
}

func NewRedisSink(client *redis.Client, keyPrefix string, granted bool) *RedisSink {
	if keyPrefix == "" {
		keyPrefix = "bandaid"
	}
	return &RedisSink{
		client:      client,
		scheduleKey: keyPrefix + ":notifications:schedule",
		payloadKey:  keyPrefix + ":notifications:payload",
		granted:     granted,
	}
}

func (r *RedisSink) Schedule(ctx context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification %s: %w", n.ID, err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, r.scheduleKey, redis.Z{Score: float64(n.FireAt.UnixMilli()), Member: n.ID})
		pipe.HSet(ctx, r.payloadKey, n.ID, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("schedule notification %s: %w", n.ID, err)
	}
	return nil
}

func (r *RedisSink) Cancel(ctx context.Context, id string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, r.scheduleKey, id)
		pipe.HDel(ctx, r.payloadKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cancel notification %s: %w", id, err)
	}
	return nil
}

// completeAttempts bounds retries when the schedule changes under WATCH.
const completeAttempts = 3

func (r *RedisSink) Complete(ctx context.Context, n Notification) error {
	want := float64(n.FireAt.UnixMilli())

	txf := func(tx *redis.Tx) error {
		score, err := tx.ZScore(ctx, r.scheduleKey, n.ID).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if score != want {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRem(ctx, r.scheduleKey, n.ID)
			pipe.HDel(ctx, r.payloadKey, n.ID)
			return nil
		})
		return err
	}

	var err error
	for i := 0; i < completeAttempts; i++ {
		err = r.client.Watch(ctx, txf, r.scheduleKey)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("complete notification %s: %w", n.ID, err)
	}
	return nil
}

func (r *RedisSink) ListAll(ctx context.Context) ([]Notification, error) {
	ids, err := r.client.ZRange(ctx, r.scheduleKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	if len(ids) == 0 {
		return []Notification{}, nil
	}

	vals, err := r.client.HMGet(ctx, r.payloadKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load notifications: %w", err)
	}

	out := make([]Notification, 0, len(ids))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			// payload missing; the id alone still lets callers cancel it
			out = append(out, Notification{ID: ids[i]})
			continue
		}
		var n Notification
		if err := json.Unmarshal([]byte(s), &n); err != nil {
			out = append(out, Notification{ID: ids[i]})
			continue
		}
		out = append(out, n)
	}

	sortNotifications(out)
	return out, nil
}

func (r *RedisSink) RequestPermission(_ context.Context) (bool, error) {
	return r.granted, nil
}

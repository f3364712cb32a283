package storage

import (
	"context"
	"encoding/json"
	"errors"
)

// LoadList reads the JSON list stored under key. A missing or malformed value
// reads as an empty list.
func LoadList[T any](ctx context.Context, blobs BlobStore, key string) ([]T, error) {
	data, err := blobs.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return []T{}, nil
		}
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil || out == nil {
		return []T{}, nil
	}
	return out, nil
}

// SaveList stores items as a JSON list under key.
func SaveList[T any](ctx context.Context, blobs BlobStore, key string, items []T) error {
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return blobs.Set(ctx, key, data)
}

// Package recordings keeps the metadata of rehearsal recordings and the audio
// files they point at.
package recordings

import (
	"errors"
	"time"
)

const StorageKey = "@bandaid_recordings"

var (
	ErrNotFound = errors.New("recording not found")
	ErrInvalid  = errors.New("invalid recording")
)

type Recording struct {
	ID    string `json:"id"`
	Title string `json:"title" validate:"required"`
	// URI is the path of the audio file.
	URI string `json:"uri" validate:"required"`
	// Duration is the length in milliseconds.
	Duration  int64     `json:"duration" validate:"gte=0"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Update carries the fields to change; nil fields are left alone.
type Update struct {
	Title    *string `json:"title,omitempty"`
	Duration *int64  `json:"duration,omitempty"`
}

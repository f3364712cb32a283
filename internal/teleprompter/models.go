// Package teleprompter stores the teleprompter text library and playlists.
package teleprompter

import (
	"errors"
	"strings"
	"time"
)

const (
	TextsKey     = "@bandaid_texts"
	PlaylistsKey = "@bandaid_playlists"

	DefaultScrollSpeed = 50
	DefaultFontSize    = 24
)

var (
	ErrTextNotFound     = errors.New("text not found")
	ErrPlaylistNotFound = errors.New("playlist not found")
	ErrInvalid          = errors.New("invalid input")
)

type Text struct {
	ID           string    `json:"id"`
	Title        string    `json:"title" validate:"required"`
	Content      string    `json:"content"`
	ScrollSpeed  int       `json:"scrollSpeed" validate:"gte=1"`
	FontSize     int       `json:"fontSize,omitempty" validate:"omitempty,gte=1"`
	DateCreated  time.Time `json:"dateCreated"`
	DateModified time.Time `json:"dateModified"`
	Order        int       `json:"order"`
}

type Playlist struct {
	ID           string    `json:"id"`
	Name         string    `json:"name" validate:"required"`
	Description  string    `json:"description"`
	TextIDs      []string  `json:"textIds"`
	DateCreated  time.Time `json:"dateCreated"`
	DateModified time.Time `json:"dateModified"`
	Order        int       `json:"order"`
}

// TextUpdate carries the text fields to change; nil fields are left alone.
type TextUpdate struct {
	Title       *string `json:"title,omitempty"`
	Content     *string `json:"content,omitempty"`
	ScrollSpeed *int    `json:"scrollSpeed,omitempty"`
	FontSize    *int    `json:"fontSize,omitempty"`
}

// PlaylistUpdate carries the playlist fields to change; nil fields are left alone.
type PlaylistUpdate struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	TextIDs     *[]string `json:"textIds,omitempty"`
}

// WordCount returns the number of whitespace separated words in the text.
func (t Text) WordCount() int {
	return len(strings.Fields(t.Content))
}

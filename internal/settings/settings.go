// Package settings stores the teleprompter preferences.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"bandaid/internal/storage"
)

const StorageKey = "@bandaid_settings"

type OrientationMode string

const (
	OrientationAuto      OrientationMode = "auto"
	OrientationPortrait  OrientationMode = "portrait"
	OrientationLandscape OrientationMode = "landscape"
)

// ErrInvalidSettings is returned when settings fail validation.
var ErrInvalidSettings = errors.New("invalid settings")

type Settings struct {
	KeepScreenOn    bool            `json:"keepScreenOn"`
	DefaultSpeed    int             `json:"defaultSpeed" validate:"gte=1,lte=100"`
	DefaultFontSize int             `json:"defaultFontSize" validate:"gte=8,lte=200"`
	MirrorMode      bool            `json:"mirrorMode"`
	ShowWordCount   bool            `json:"showWordCount"`
	ConfirmDelete   bool            `json:"confirmDelete"`
	OrientationMode OrientationMode `json:"orientationMode" validate:"oneof=auto portrait landscape"`
}

// DefaultSettings returns the settings used when nothing is stored.
func DefaultSettings() Settings {
	return Settings{
		KeepScreenOn:    true,
		DefaultSpeed:    10,
		DefaultFontSize: 24,
		MirrorMode:      false,
		ShowWordCount:   true,
		ConfirmDelete:   true,
		OrientationMode: OrientationAuto,
	}
}

var validate = validator.New()

func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return nil
}

// Merge decodes data over the defaults. Fields missing from data keep their
// default; fields holding invalid values are reset to their default.
func Merge(data []byte) (Settings, error) {
	out := DefaultSettings()
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return DefaultSettings(), err
	}
	return repair(out), nil
}

func repair(s Settings) Settings {
	err := validate.Struct(s)
	if err == nil {
		return s
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return DefaultSettings()
	}
	def := DefaultSettings()
	for _, fe := range verrs {
		switch fe.StructField() {
		case "DefaultSpeed":
			s.DefaultSpeed = def.DefaultSpeed
		case "DefaultFontSize":
			s.DefaultFontSize = def.DefaultFontSize
		case "OrientationMode":
			s.OrientationMode = def.OrientationMode
		}
	}
	return s
}

// Store persists settings in a blob store.
type Store struct {
	blobs  storage.BlobStore
	logger zerolog.Logger
}

func NewStore(blobs storage.BlobStore, logger zerolog.Logger) *Store {
	return &Store{blobs: blobs, logger: logger.With().Str("component", "settings").Logger()}
}

// Load returns the stored settings merged over the defaults. Read and decode
// failures yield the defaults.
func (s *Store) Load(ctx context.Context) Settings {
	data, err := s.blobs.Get(ctx, StorageKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Error().Err(err).Msg("Error loading settings")
		}
		return DefaultSettings()
	}

	settings, err := Merge(data)
	if err != nil {
		s.logger.Error().Err(err).Msg("Stored settings are malformed; using defaults")
	}
	return settings
}

func (s *Store) Save(ctx context.Context, settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	if err := s.blobs.Set(ctx, StorageKey, data); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Patch applies the fields present in patch to the current settings.
func (s *Store) Patch(ctx context.Context, patch []byte) (Settings, error) {
	current := s.Load(ctx)
	if err := json.Unmarshal(patch, &current); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if err := s.Save(ctx, current); err != nil {
		return Settings{}, err
	}
	return current, nil
}

// Reset restores and stores the defaults.
func (s *Store) Reset(ctx context.Context) (Settings, error) {
	def := DefaultSettings()
	return def, s.Save(ctx, def)
}

package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bandaid/internal/events"
	"bandaid/internal/gigs"
	"bandaid/internal/models"
)

// ErrNotFound is returned when a gig does not exist.
var ErrNotFound = gigs.ErrNotFound

type GigStore interface {
	GetAll(ctx context.Context) []models.Gig
	Get(ctx context.Context, id string) (*models.Gig, error)
	Upsert(ctx context.Context, gig models.Gig) error
	Remove(ctx context.Context, id string) error
	ForgetRollover(ctx context.Context, sourceID string) error
}

type ReminderScheduler interface {
	ScheduleNotifications(ctx context.Context, gig models.Gig) error
	CancelNotifications(ctx context.Context, gigID string) error
	EvaluateAll(ctx context.Context) error
}

type EventPublisher interface {
	Publish(evType string, payload interface{})
}

// GigInput is what the gig form submits.
type GigInput struct {
	Title            string                   `json:"title"`
	Description      string                   `json:"description"`
	Date             models.Date              `json:"date"`
	Time             models.Clock             `json:"time"`
	ReminderSettings *models.ReminderSettings `json:"reminderSettings,omitempty"`
}

// GigService runs gig mutations and reminder evaluations one at a time.
type GigService struct {
	store     GigStore
	reminders ReminderScheduler
	publisher EventPublisher
	logger    zerolog.Logger
	now       func() time.Time
	newID     func() string

	mu sync.Mutex
}

func NewGigService(store GigStore, reminders ReminderScheduler, publisher EventPublisher, logger zerolog.Logger) *GigService {
	return &GigService{
		store:     store,
		reminders: reminders,
		publisher: publisher,
		logger:    logger.With().Str("component", "gig_service").Logger(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// List evaluates reminders for every gig, which may roll recurring gigs
// forward, and returns the refreshed list.
func (s *GigService) List(ctx context.Context) []models.Gig {
	if err := s.EvaluateAll(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Reminder evaluation failed during list refresh")
	}
	return s.store.GetAll(ctx)
}

// EvaluateAll runs the lazy reminder check over all gigs.
func (s *GigService) EvaluateAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reminders.EvaluateAll(ctx)
}

func (s *GigService) Get(ctx context.Context, id string) (*models.Gig, error) {
	return s.store.Get(ctx, id)
}

// Create stores a new gig built from in.
func (s *GigService) Create(ctx context.Context, in GigInput) (*models.Gig, error) {
	now := s.now()
	gig := models.Gig{
		ID:               s.newID(),
		ReminderSettings: models.DefaultReminderSettings(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	applyInput(&gig, in)

	if err := s.Save(ctx, gig); err != nil {
		return nil, err
	}
	return &gig, nil
}

// Update replaces the editable fields of an existing gig, keeping its id and
// creation time.
func (s *GigService) Update(ctx context.Context, id string, in GigInput) (*models.Gig, error) {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	gig := *existing
	applyInput(&gig, in)
	gig.UpdatedAt = s.now()

	if err := gig.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A moved gig is a new occurrence; its old successor no longer applies.
	if gig.Date != existing.Date || gig.Time != existing.Time {
		if err := s.store.ForgetRollover(ctx, id); err != nil {
			s.logger.Error().Err(err).Str("gig_id", id).Msg("Failed to clear rollover record")
		}
	}

	if err := s.save(ctx, gig); err != nil {
		return nil, err
	}
	return &gig, nil
}

// Save validates and stores gig, then re-derives its reminders. Reminder
// failures are logged; only validation and storage errors are returned.
func (s *GigService) Save(ctx context.Context, gig models.Gig) error {
	if err := gig.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, gig)
}

// save does the work of Save. Callers hold s.mu.
func (s *GigService) save(ctx context.Context, gig models.Gig) error {
	if err := s.store.Upsert(ctx, gig); err != nil {
		s.logger.Error().Err(err).Str("gig_id", gig.ID).Msg("Error saving gig")
		return err
	}

	if err := s.reminders.ScheduleNotifications(ctx, gig); err != nil {
		s.logger.Error().Err(err).Str("gig_id", gig.ID).Msg("Failed to schedule gig reminders")
	}

	s.publish(events.GigSaved, gig)
	s.logger.Info().Str("gig_id", gig.ID).Str("date", gig.Date.String()).Msg("Gig saved")
	return nil
}

// Delete removes the gig and cancels all of its reminders.
func (s *GigService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.Get(ctx, id); err != nil {
		return err
	}

	if err := s.store.Remove(ctx, id); err != nil {
		s.logger.Error().Err(err).Str("gig_id", id).Msg("Error deleting gig")
		return err
	}

	if err := s.reminders.CancelNotifications(ctx, id); err != nil {
		s.logger.Error().Err(err).Str("gig_id", id).Msg("Failed to cancel gig reminders")
	}

	s.publish(events.GigDeleted, map[string]string{"id": id})
	s.logger.Info().Str("gig_id", id).Msg("Gig deleted")
	return nil
}

func (s *GigService) publish(evType string, payload interface{}) {
	if s.publisher != nil {
		s.publisher.Publish(evType, payload)
	}
}

func applyInput(gig *models.Gig, in GigInput) {
	gig.Title = strings.TrimSpace(in.Title)
	gig.Description = strings.TrimSpace(in.Description)
	gig.Date = in.Date
	gig.Time = in.Time
	if in.ReminderSettings != nil {
		gig.ReminderSettings = *in.ReminderSettings
	}
}

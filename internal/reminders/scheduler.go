package reminders

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"bandaid/internal/models"
)

// Event types published by the scheduler.
const (
	EventGigRolledOver = "gig.rolled_over"
)

// EventPublisher receives scheduler events.
type EventPublisher interface {
	Publish(evType string, payload interface{})
}

// RolloverEvent is published when a recurring gig gets its next occurrence.
type RolloverEvent struct {
	SourceID string     `json:"sourceId"`
	Next     models.Gig `json:"next"`
}

// Scheduler turns gig reminder settings into sink registrations and rolls
// elapsed recurring gigs forward.
type Scheduler struct {
	repo      GigRepository
	sink      Sink
	loc       *time.Location
	logger    zerolog.Logger
	metrics   *Metrics
	publisher EventPublisher
	now       func() time.Time
	newID     func() string

	permMu    sync.Mutex
	permKnown bool
	permitted bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLocation sets the zone gig dates and times are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Scheduler) { s.newID = newID }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

func WithPublisher(p EventPublisher) Option {
	return func(s *Scheduler) { s.publisher = p }
}

func NewScheduler(repo GigRepository, sink Sink, logger zerolog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		repo:   repo,
		sink:   sink,
		loc:    time.Local,
		logger: logger.With().Str("component", "reminders").Logger(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics("bandaid", prometheus.NewRegistry())
	}
	return s
}

// ScheduleNotifications replaces the gig's registrations with the reminders
// its current settings call for. An elapsed recurring gig is advanced to its
// next occurrence instead. Failures to register individual reminders are
// logged and do not stop the remaining ones.
func (s *Scheduler) ScheduleNotifications(ctx context.Context, gig models.Gig) error {
	return s.schedule(ctx, gig, true)
}

func (s *Scheduler) schedule(ctx context.Context, gig models.Gig, allowRollover bool) error {
	if err := s.CancelNotifications(ctx, gig.ID); err != nil {
		s.logger.Error().Err(err).Str("gig_id", gig.ID).Msg("Failed to cancel existing notifications")
	}

	if !gig.ReminderSettings.Enabled {
		return nil
	}

	now := s.now()
	instant := gig.Instant(s.loc)

	if !instant.After(now) && gig.ReminderSettings.Recurring {
		if !allowRollover {
			return nil
		}
		_, err := s.AdvanceRecurrence(ctx, gig)
		return err
	}

	if !s.permissionGranted(ctx) {
		s.logger.Warn().Str("gig_id", gig.ID).Msg("Notification permission not granted; reminders not scheduled")
		return nil
	}

	for _, n := range BuildNotifications(gig, instant) {
		if !n.FireAt.After(now) {
			s.metrics.IncSkipped()
			continue
		}
		if err := s.sink.Schedule(ctx, n); err != nil {
			s.metrics.IncScheduleFailure(n.Content.Data.Type)
			s.logger.Error().Err(err).
				Str("gig_id", gig.ID).
				Str("notification_id", n.ID).
				Msg("Failed to schedule notification")
			continue
		}
		s.metrics.IncScheduled(n.Content.Data.Type)
		s.logger.Debug().
			Str("notification_id", n.ID).
			Time("fire_at", n.FireAt).
			Time("gig_at", instant).
			Msg("Scheduled notification")
	}
	return nil
}

// CancelNotifications removes every registration whose identifier starts with gigID.
func (s *Scheduler) CancelNotifications(ctx context.Context, gigID string) error {
	all, err := s.sink.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list notifications: %w", err)
	}

	cancelled := 0
	var firstErr error
	for _, n := range all {
		if !strings.HasPrefix(n.ID, gigID) {
			continue
		}
		if err := s.sink.Cancel(ctx, n.ID); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("cancel notification %s: %w", n.ID, err)
			}
			continue
		}
		cancelled++
	}
	s.metrics.AddCancelled(cancelled)
	return firstErr
}

// AdvanceRecurrence stores the occurrence that follows gig and schedules its
// reminders. The source gig is left untouched. If gig was already advanced,
// the stored successor's id is returned and nothing is created.
func (s *Scheduler) AdvanceRecurrence(ctx context.Context, gig models.Gig) (string, error) {
	if !gig.ReminderSettings.Recurring {
		return "", fmt.Errorf("gig %s is not recurring", gig.ID)
	}

	if nextID, ok := s.repo.RolloverOf(ctx, gig.ID); ok {
		return nextID, nil
	}

	next, err := nextGig(gig, s.loc, s.newID(), s.now())
	if err != nil {
		return "", fmt.Errorf("advance gig %s: %w", gig.ID, err)
	}

	if err := s.repo.Upsert(ctx, next); err != nil {
		return "", fmt.Errorf("advance gig %s: %w", gig.ID, err)
	}
	if err := s.repo.RecordRollover(ctx, gig.ID, next.ID); err != nil {
		s.logger.Error().Err(err).Str("gig_id", gig.ID).Msg("Failed to record rollover")
	}
	s.metrics.IncRollovers()

	s.logger.Info().
		Str("gig_id", gig.ID).
		Str("next_id", next.ID).
		Str("next_date", next.Date.String()).
		Msg("Recurring gig advanced")

	if s.publisher != nil {
		s.publisher.Publish(EventGigRolledOver, RolloverEvent{SourceID: gig.ID, Next: next})
	}

	return next.ID, s.schedule(ctx, next, false)
}

// EvaluateAll re-runs scheduling for every stored gig. It is the lazy check
// that rolls elapsed recurring gigs forward, one occurrence per call.
func (s *Scheduler) EvaluateAll(ctx context.Context) error {
	gigs := s.repo.GetAll(ctx)

	var firstErr error
	for _, g := range gigs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.ScheduleNotifications(ctx, g); err != nil {
			s.logger.Error().Err(err).Str("gig_id", g.ID).Msg("Failed to evaluate gig")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	s.logger.Debug().Int("gigs", len(gigs)).Msg("Evaluated gig reminders")
	return firstErr
}

// permissionGranted asks the sink until it gets an answer, then keeps that
// answer for the life of the process.
func (s *Scheduler) permissionGranted(ctx context.Context) bool {
	s.permMu.Lock()
	defer s.permMu.Unlock()

	if s.permKnown {
		return s.permitted
	}

	granted, err := s.sink.RequestPermission(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Notification permission request failed")
		return false
	}
	s.permKnown = true
	s.permitted = granted
	if !granted {
		s.logger.Warn().Msg("Notification permission denied")
	}
	return s.permitted
}

package reminders

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Evaluator runs the lazy reminder check over all gigs.
type Evaluator interface {
	EvaluateAll(ctx context.Context) error
}

// Sweeper runs an Evaluator on a cron schedule, standing in for the list
// refreshes that trigger rollover checks.
type Sweeper struct {
	eval     Evaluator
	schedule string
	cron     *cron.Cron
	logger   zerolog.Logger
}

func NewSweeper(eval Evaluator, schedule string, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		eval:     eval,
		schedule: schedule,
		logger:   logger.With().Str("component", "sweeper").Logger(),
	}
}

// Start registers the sweep and runs it until ctx is done.
func (s *Sweeper) Start(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.schedule, func() { s.sweep(ctx) }); err != nil {
		return fmt.Errorf("parse sweep schedule %q: %w", s.schedule, err)
	}
	s.cron = c
	c.Start()

	s.logger.Info().Str("schedule", s.schedule).Msg("Reminder sweeper started")

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}

func (s *Sweeper) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.eval.EvaluateAll(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Reminder sweep finished with errors")
	}
}

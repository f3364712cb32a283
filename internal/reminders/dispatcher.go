package reminders

import (
	"context"
	"errors"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Delivery outcomes recorded in metrics.
const (
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
	StatusOrphaned  = "orphaned"
)

// ErrPermanent marks a delivery error that retrying cannot fix.
var ErrPermanent = errors.New("permanent delivery failure")

// DispatcherConfig holds configuration for the delivery loop.
type DispatcherConfig struct {
	// PollInterval is how often the sink is checked for due notifications.
	PollInterval time.Duration
	// Rate is the number of deliveries allowed per second.
	Rate float64
	// Burst is the maximum number of deliveries sent back to back.
	Burst int
	// MaxRetries is how many times a failed delivery is retried.
	MaxRetries int
	// RetryDelays are the waits between attempts; the last one repeats.
	RetryDelays []time.Duration
}

// DefaultDispatcherConfig returns the default configuration.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		PollInterval: 15 * time.Second,
		Rate:         20,
		Burst:        30,
		MaxRetries:   3,
		RetryDelays:  []time.Duration{time.Second, 5 * time.Second, 30 * time.Second},
	}
}

// Dispatcher fires due notifications: it polls the sink, hands each due
// registration to a Deliverer and removes it once delivered or given up on.
type Dispatcher struct {
	sink      Sink
	deliverer Deliverer
	config    DispatcherConfig
	limiter   *rate.Limiter
	logger    zerolog.Logger
	metrics   *Metrics
	now       func() time.Time

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

func NewDispatcher(sink Sink, deliverer Deliverer, config DispatcherConfig, metrics *Metrics, logger zerolog.Logger) *Dispatcher {
	def := DefaultDispatcherConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.Rate <= 0 {
		config.Rate = def.Rate
	}
	if config.Burst <= 0 {
		config.Burst = def.Burst
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if len(config.RetryDelays) == 0 {
		config.RetryDelays = def.RetryDelays
	}

	return &Dispatcher{
		sink:      sink,
		deliverer: deliverer,
		config:    config,
		limiter:   rate.NewLimiter(rate.Limit(config.Rate), config.Burst),
		logger:    logger.With().Str("component", "dispatcher").Logger(),
		metrics:   metrics,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the poll loop.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.wg.Add(1)
	go d.loop(ctx)

	d.logger.Info().Dur("poll_interval", d.config.PollInterval).Msg("Notification dispatcher started")
}

// Stop stops the poll loop and waits for the current pass to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	close(d.stopCh)
	d.wg.Wait()
	d.logger.Info().Msg("Notification dispatcher stopped")
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer d.wg.Done()

	d.DispatchDue(ctx)

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.DispatchDue(ctx)
		}
	}
}

// DispatchDue delivers every notification whose fire time has come and
// returns how many were delivered and how many were dropped.
func (d *Dispatcher) DispatchDue(ctx context.Context) (delivered, failed int) {
	all, err := d.sink.ListAll(ctx)
	if err != nil {
		d.logger.Error().Err(err).Msg("Failed to list notifications")
		return 0, 0
	}
	d.metrics.SetPending(len(all))

	now := d.now()
	policy := CurrentPolicy()

	for _, n := range all {
		if n.FireAt.After(now) {
			// ListAll is ordered by fire time
			break
		}
		if ctx.Err() != nil {
			return delivered, failed
		}

		if n.Content.Title == "" {
			d.logger.Warn().Str("notification_id", n.ID).Msg("Dropping notification without content")
			d.metrics.IncDelivered(StatusOrphaned)
			d.remove(ctx, n.ID)
			failed++
			continue
		}

		start := time.Now()
		err := d.deliverWithRetry(ctx, n, policy)
		d.metrics.ObserveDeliveryDuration(time.Since(start).Seconds())

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return delivered, failed
			}
			d.metrics.IncDelivered(StatusFailed)
			d.logger.Error().Err(err).Str("notification_id", n.ID).Msg("Giving up on notification")
			failed++
		} else {
			d.metrics.IncDelivered(StatusDelivered)
			delivered++
		}
		d.complete(ctx, n)
	}

	if delivered+failed > 0 {
		d.logger.Info().Int("delivered", delivered).Int("failed", failed).Msg("Due notifications processed")
	}
	return delivered, failed
}

func (d *Dispatcher) remove(ctx context.Context, id string) {
	if err := d.sink.Cancel(ctx, id); err != nil {
		d.logger.Error().Err(err).Str("notification_id", id).Msg("Failed to remove notification")
	}
}

// complete removes n unless a save rescheduled it while it was being delivered.
func (d *Dispatcher) complete(ctx context.Context, n Notification) {
	if err := d.sink.Complete(ctx, n); err != nil {
		d.logger.Error().Err(err).Str("notification_id", n.ID).Msg("Failed to complete notification")
	}
}

// deliverWithRetry delivers n, waiting on the rate limiter first and retrying
// transient failures with backoff.
func (d *Dispatcher) deliverWithRetry(ctx context.Context, n Notification, policy DisplayPolicy) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= d.config.MaxRetries; attempt++ {
		err := d.deliverer.Deliver(ctx, n, policy)
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, ErrPermanent) {
			return err
		}

		wait := d.retryDelay(attempt)
		var tgErr *tgbotapi.Error
		if errors.As(err, &tgErr) {
			switch tgErr.Code {
			case 429:
				if tgErr.RetryAfter > 0 {
					wait = time.Duration(tgErr.RetryAfter) * time.Second
				}
				d.logger.Info().Dur("retry_after", wait).Str("notification_id", n.ID).Msg("Rate limited by Telegram, waiting")
			case 400, 403:
				return errors.Join(ErrPermanent, err)
			}
		}

		if attempt == d.config.MaxRetries {
			break
		}

		d.metrics.IncRetries()
		d.logger.Info().
			Int("attempt", attempt+1).
			Int("max_retries", d.config.MaxRetries).
			Dur("delay", wait).
			Err(err).
			Msg("Retrying notification delivery")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func (d *Dispatcher) retryDelay(attempt int) time.Duration {
	delays := d.config.RetryDelays
	if attempt < len(delays) {
		return delays[attempt]
	}
	return delays[len(delays)-1]
}

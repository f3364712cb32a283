package audit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"bandaid/internal/export"
	"bandaid/internal/reminders"
)

// Config holds configuration for the audit service.
type Config struct {
	// RetentionDays is how long journal entries are kept. Default: 90 days.
	RetentionDays int

	// ExportOnStart runs the report immediately on service start.
	ExportOnStart bool
}

// Notifier delivers a finished report.
type Notifier interface {
	SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error
}

var activityColumns = []string{"When", "Event", "Gig", "Title", "Gig date", "Next occurrence"}

// Service sends the previous month's activity report on the first of each
// month and prunes old journal entries.
type Service struct {
	config   Config
	journal  *Journal
	notifier Notifier
	loc      *time.Location
	logger   zerolog.Logger
	now      func() time.Time
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

func NewService(config Config, journal *Journal, notifier Notifier, loc *time.Location, logger zerolog.Logger) *Service {
	if config.RetentionDays <= 0 {
		config.RetentionDays = 90
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		config:   config,
		journal:  journal,
		notifier: notifier,
		loc:      loc,
		logger:   logger.With().Str("component", "audit").Logger(),
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the monthly schedule.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	if s.config.ExportOnStart {
		go s.RunExportAndCleanup()
	}

	s.wg.Add(1)
	go s.loop()

	s.logger.Info().Int("retention_days", s.config.RetentionDays).Msg("Audit service started")
}

// Stop gracefully stops the audit service.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info().Msg("Audit service stopped")
}

func (s *Service) loop() {
	defer s.wg.Done()

	nextRun := nextFirstOfMonth(s.now().In(s.loc))
	timer := time.NewTimer(time.Until(nextRun))
	defer timer.Stop()
	s.logger.Info().Time("time", nextRun).Msg("Next activity report scheduled")

	for {
		select {
		case <-s.stopCh:
			return
		case <-timer.C:
			s.RunExportAndCleanup()

			nextRun = nextFirstOfMonth(s.now().In(s.loc))
			timer.Reset(time.Until(nextRun))
			s.logger.Info().Time("time", nextRun).Msg("Next activity report scheduled")
		}
	}
}

// nextFirstOfMonth returns 00:01 on the first day of the month after t.
func nextFirstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 1, 0, 1, 0, 0, t.Location())
}

// RunExportAndCleanup sends last month's report, then prunes the journal.
func (s *Service) RunExportAndCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := s.ExportMonth(ctx, s.now().In(s.loc).AddDate(0, -1, 0)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to export activity report")
	}
	if err := s.Cleanup(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Failed to clean up activity journal")
	}
}

// ExportMonth builds the report for the calendar month containing month and
// hands it to the notifier.
func (s *Service) ExportMonth(ctx context.Context, month time.Time) error {
	month = month.In(s.loc)
	from := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, s.loc)
	to := from.AddDate(0, 1, 0)

	entries, err := s.journal.Between(ctx, from, to)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := s.writeReport(&buf, entries); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if s.notifier == nil {
		s.logger.Info().Int("entries", len(entries)).Msg("Activity report built; no notifier configured")
		return nil
	}

	filename := GenerateFilename(from)
	caption := fmt.Sprintf("Gig activity for %s %d", from.Month(), from.Year())
	if err := s.notifier.SendDocument(ctx, filename, &buf, caption); err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	s.logger.Info().Str("filename", filename).Int("entries", len(entries)).Msg("Activity report sent")
	return nil
}

func (s *Service) writeReport(out io.Writer, entries []Entry) error {
	w := export.NewExcelizeWriter()
	defer w.Close()

	if err := w.AddSheet("Activity"); err != nil {
		return err
	}
	if err := w.WriteHeader(activityColumns); err != nil {
		return err
	}
	for _, e := range entries {
		row := []interface{}{
			e.At.In(s.loc).Format("2006-01-02 15:04"),
			e.Type,
			e.GigID,
			e.Title,
			e.GigDate,
			e.NextID,
		}
		if err := w.WriteRow(row); err != nil {
			return err
		}
	}
	return w.Save(out)
}

// Cleanup drops journal entries older than the retention window.
func (s *Service) Cleanup(ctx context.Context) error {
	cutoff := s.now().AddDate(0, 0, -s.config.RetentionDays)
	deleted, err := s.journal.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete old entries: %w", err)
	}
	s.logger.Info().Int("deleted_count", deleted).Int("retention_days", s.config.RetentionDays).Msg("Cleaned up activity journal")
	return nil
}

// GenerateFilename creates a filename like "Activity_October_2026.xlsx".
func GenerateFilename(t time.Time) string {
	return fmt.Sprintf("Activity_%s_%d.xlsx", t.Month(), t.Year())
}

// TelegramNotifier sends reports as documents to one chat.
type TelegramNotifier struct {
	bot    reminders.TelegramSender
	chatID int64
}

func NewTelegramNotifier(bot reminders.TelegramSender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID}
}

func (t *TelegramNotifier) SendDocument(_ context.Context, filename string, data io.Reader, caption string) error {
	doc := tgbotapi.NewDocument(t.chatID, tgbotapi.FileReader{Name: filename, Reader: data})
	doc.Caption = caption
	_, err := t.bot.Send(doc)
	return err
}

package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"bandaid/internal/events"
	"bandaid/internal/models"
	"bandaid/internal/reminders"
	"bandaid/internal/storage"
)

type capturedDoc struct {
	filename string
	caption  string
	data     []byte
}

type fakeNotifier struct {
	docs []capturedDoc
}

func (f *fakeNotifier) SendDocument(_ context.Context, filename string, data io.Reader, caption string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.docs = append(f.docs, capturedDoc{filename: filename, caption: caption, data: b})
	return nil
}

func publishAll(t *testing.T, j *Journal) {
	t.Helper()
	bus := events.NewEventBus(zerolog.New(io.Discard))
	h := Handler(j)
	for _, typ := range []string{events.GigSaved, events.GigDeleted, events.GigRolledOver} {
		bus.Subscribe(typ, h)
	}

	gig := models.Gig{ID: "g1", Title: "Blue Note", Date: models.Date{Year: 2026, Month: time.September, Day: 4}}
	next := gig
	next.ID = "g2"
	next.Date = models.Date{Year: 2026, Month: time.September, Day: 11}

	bus.Dispatch(mustEvent(t, events.GigSaved, gig, time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)))
	bus.Dispatch(mustEvent(t, events.GigRolledOver, reminders.RolloverEvent{SourceID: "g1", Next: next}, time.Date(2026, 9, 5, 10, 0, 0, 0, time.UTC)))
	bus.Dispatch(mustEvent(t, events.GigDeleted, map[string]string{"id": "g2"}, time.Date(2026, 10, 2, 10, 0, 0, 0, time.UTC)))
}

func mustEvent(t *testing.T, typ string, payload interface{}, at time.Time) events.Event {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return events.Event{Type: typ, Payload: data, CreatedAt: at}
}

func TestJournal_RecordsGigEvents(t *testing.T) {
	ctx := context.Background()
	j := NewJournal(storage.NewMemoryStore())
	publishAll(t, j)

	all, err := j.Between(ctx, time.Time{}, time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, all, 3)

	assert.Equal(t, Entry{Type: events.GigSaved, GigID: "g1", Title: "Blue Note", GigDate: "2026-09-04", At: all[0].At}, all[0])
	assert.Equal(t, "g1", all[1].GigID)
	assert.Equal(t, "g2", all[1].NextID)
	assert.Equal(t, "2026-09-11", all[1].GigDate)
	assert.Equal(t, "g2", all[2].GigID)
}

func TestJournal_UnknownEventFails(t *testing.T) {
	j := NewJournal(storage.NewMemoryStore())
	err := Handler(j)(events.Event{Type: "gig.unknown", Payload: []byte(`{}`)})
	assert.Error(t, err)
}

func TestJournal_DeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	j := NewJournal(storage.NewMemoryStore())
	publishAll(t, j)

	deleted, err := j.DeleteOlderThan(ctx, time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	deleted, err = j.DeleteOlderThan(ctx, time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}

func TestService_ExportMonth(t *testing.T) {
	ctx := context.Background()
	j := NewJournal(storage.NewMemoryStore())
	publishAll(t, j)

	notifier := &fakeNotifier{}
	svc := NewService(Config{}, j, notifier, time.UTC, zerolog.New(io.Discard))
	require.NoError(t, svc.ExportMonth(ctx, time.Date(2026, 9, 20, 0, 0, 0, 0, time.UTC)))

	require.Len(t, notifier.docs, 1)
	doc := notifier.docs[0]
	assert.Equal(t, "Activity_September_2026.xlsx", doc.filename)
	assert.Equal(t, "Gig activity for September 2026", doc.caption)

	f, err := excelize.OpenReader(bytes.NewReader(doc.data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Activity")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, activityColumns, rows[0])
	assert.Equal(t, "2026-09-01 10:00", rows[1][0])
	assert.Equal(t, events.GigRolledOver, rows[2][1])
}

func TestService_RunExportAndCleanup(t *testing.T) {
	j := NewJournal(storage.NewMemoryStore())
	publishAll(t, j)

	notifier := &fakeNotifier{}
	svc := NewService(Config{RetentionDays: 30}, j, notifier, time.UTC, zerolog.New(io.Discard))
	svc.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }

	svc.RunExportAndCleanup()

	require.Len(t, notifier.docs, 1)
	assert.Equal(t, "Activity_September_2026.xlsx", notifier.docs[0].filename)

	left, err := j.Between(context.Background(), time.Time{}, time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, events.GigDeleted, left[0].Type)
}

func TestService_StartStop(t *testing.T) {
	svc := NewService(Config{}, NewJournal(storage.NewMemoryStore()), nil, time.UTC, zerolog.New(io.Discard))
	svc.Start()
	svc.Start()
	svc.Stop()
	svc.Stop()
}

func TestNextFirstOfMonth(t *testing.T) {
	got := nextFirstOfMonth(time.Date(2026, 12, 15, 8, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2027, 1, 1, 0, 1, 0, 0, time.UTC), got)
}

type fakeBot struct {
	sent []tgbotapi.Chattable
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func TestTelegramNotifier(t *testing.T) {
	bot := &fakeBot{}
	n := NewTelegramNotifier(bot, 42)
	require.NoError(t, n.SendDocument(context.Background(), "report.xlsx", bytes.NewReader([]byte("x")), "caption"))

	require.Len(t, bot.sent, 1)
	doc, ok := bot.sent[0].(tgbotapi.DocumentConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), doc.ChatID)
	assert.Equal(t, "caption", doc.Caption)
}

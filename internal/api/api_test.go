package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"bandaid/internal/gigs"
	"bandaid/internal/models"
	"bandaid/internal/recordings"
	"bandaid/internal/reminders"
	"bandaid/internal/service"
	"bandaid/internal/settings"
	"bandaid/internal/storage"
	"bandaid/internal/teleprompter"
)

const testAPIKey = "valid-key"

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	handler    http.Handler
	recordings *recordings.Store
	sink       *reminders.MemorySink
	reg        *prometheus.Registry
	apiKey     string
}

func newTestEnv(t *testing.T, apiKey string, ready func(context.Context) error) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)
	blobs := storage.NewMemoryStore()

	repo := gigs.NewRepository(blobs, logger)
	sink := reminders.NewMemorySink(true)
	scheduler := reminders.NewScheduler(repo, sink, logger,
		reminders.WithLocation(time.UTC),
		reminders.WithClock(func() time.Time { return testNow }),
	)
	svc := service.NewGigService(repo, scheduler, nil, logger)

	recs := recordings.NewStore(blobs, t.TempDir(), logger)

	reg := prometheus.NewRegistry()
	srv := NewHTTPServer(":0", apiKey, Deps{
		Gigs:          svc,
		Notifications: sink,
		Library:       teleprompter.NewLibrary(blobs, logger),
		Recordings:    recs,
		Settings:      settings.NewStore(blobs, logger),
		Location:      time.UTC,
		Ready:         ready,
	}, reg, logger)
	srv.now = func() time.Time { return testNow }

	return &testEnv{handler: srv.Handler(), recordings: recs, sink: sink, reg: reg, apiKey: apiKey}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("X-Api-Key", e.apiKey)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error string `json:"error"`
	}
	decodeBody(t, w, &resp)
	return resp.Error
}

func gigBody(title string) map[string]any {
	return map[string]any{
		"title":       title,
		"description": "  Two sets  ",
		"date":        "2026-11-02",
		"time":        "21:30",
	}
}

func TestGigs_CreateSchedulesReminders(t *testing.T) {
	env := newTestEnv(t, "", nil)

	w := env.do(t, http.MethodPost, "/api/v1/gigs", gigBody("  Blue Note "))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var gig models.Gig
	decodeBody(t, w, &gig)
	assert.NotEmpty(t, gig.ID)
	assert.Equal(t, "Blue Note", gig.Title)
	assert.Equal(t, "Two sets", gig.Description)
	assert.Equal(t, models.DefaultReminderSettings(), gig.ReminderSettings)

	w = env.do(t, http.MethodGet, "/api/v1/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Notifications []reminders.Notification `json:"notifications"`
	}
	decodeBody(t, w, &resp)

	var ids []string
	for _, n := range resp.Notifications {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{gig.ID + "-1day", gig.ID + "-3hours"}, ids)

	w = env.do(t, http.MethodGet, "/api/v1/gigs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Gigs []models.Gig `json:"gigs"`
	}
	decodeBody(t, w, &list)
	require.Len(t, list.Gigs, 1)
	assert.Equal(t, gig.ID, list.Gigs[0].ID)
}

func TestGigs_Validation(t *testing.T) {
	env := newTestEnv(t, "", nil)

	tests := []struct {
		name      string
		body      interface{}
		wantError string
	}{
		{name: "blank title", body: gigBody("   "), wantError: "Please enter a title for the gig"},
		{name: "invalid JSON", body: "not json", wantError: "invalid JSON body"},
		{name: "bad date", body: map[string]any{"title": "x", "date": "02-11-2026", "time": "21:30"}, wantError: "invalid JSON body"},
		{name: "unknown field", body: map[string]any{"title": "x", "venue": "y"}, wantError: "invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/gigs", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, errorMessage(t, w), tt.wantError)
		})
	}
}

func TestGigs_UpdateAndDelete(t *testing.T) {
	env := newTestEnv(t, "", nil)

	w := env.do(t, http.MethodPost, "/api/v1/gigs", gigBody("Blue Note"))
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.Gig
	decodeBody(t, w, &created)

	update := gigBody("Blue Note (late show)")
	update["reminderSettings"] = map[string]any{
		"enabled":               true,
		"sevenDaysBefore":       true,
		"oneDayBefore":          false,
		"hoursBeforeOptions":    []int{},
		"recurring":             false,
		"recurringIntervalDays": 7,
	}
	w = env.do(t, http.MethodPut, "/api/v1/gigs/"+created.ID, update)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated models.Gig
	decodeBody(t, w, &updated)
	assert.Equal(t, "Blue Note (late show)", updated.Title)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))

	list, err := env.sink.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID+"-7days", list[0].ID)

	w = env.do(t, http.MethodDelete, "/api/v1/gigs/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	list, err = env.sink.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)

	w = env.do(t, http.MethodGet, "/api/v1/gigs/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(t, http.MethodDelete, "/api/v1/gigs/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(t, http.MethodPut, "/api/v1/gigs/missing", gigBody("x"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExports(t *testing.T) {
	env := newTestEnv(t, "", nil)
	w := env.do(t, http.MethodPost, "/api/v1/gigs", gigBody("Blue Note"))
	require.Equal(t, http.StatusCreated, w.Code)
	var gig models.Gig
	decodeBody(t, w, &gig)

	w = env.do(t, http.MethodGet, "/api/v1/gigs.ics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "UID:"+gig.ID+"@bandaid")
	assert.Contains(t, w.Body.String(), "SUMMARY:Blue Note")

	w = env.do(t, http.MethodGet, "/api/v1/gigs.xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "gigs.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Gigs", "Reminders"}, f.GetSheetList())
	rows, err := f.GetRows("Reminders")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestSettings(t *testing.T) {
	env := newTestEnv(t, "", nil)

	w := env.do(t, http.MethodGet, "/api/v1/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got settings.Settings
	decodeBody(t, w, &got)
	assert.Equal(t, settings.DefaultSettings(), got)

	w = env.do(t, http.MethodPut, "/api/v1/settings", map[string]any{"mirrorMode": true})
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &got)
	assert.True(t, got.MirrorMode)
	assert.Equal(t, settings.DefaultSettings().DefaultFontSize, got.DefaultFontSize)

	w = env.do(t, http.MethodPut, "/api/v1/settings", map[string]any{"orientationMode": "sideways"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/settings/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &got)
	assert.Equal(t, settings.DefaultSettings(), got)
}

func TestTeleprompterLibrary(t *testing.T) {
	env := newTestEnv(t, "", nil)

	w := env.do(t, http.MethodPost, "/api/v1/texts", map[string]any{"title": "Intro", "content": "Good evening"})
	require.Equal(t, http.StatusCreated, w.Code)
	var intro teleprompter.Text
	decodeBody(t, w, &intro)
	assert.Equal(t, teleprompter.DefaultScrollSpeed, intro.ScrollSpeed)

	w = env.do(t, http.MethodPost, "/api/v1/texts", map[string]any{"title": "Outro"})
	require.Equal(t, http.StatusCreated, w.Code)
	var outro teleprompter.Text
	decodeBody(t, w, &outro)

	w = env.do(t, http.MethodPost, "/api/v1/texts", map[string]any{"title": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/texts/reorder", map[string]any{"ids": []string{outro.ID, intro.ID}})
	require.Equal(t, http.StatusOK, w.Code)
	var texts struct {
		Texts []teleprompter.Text `json:"texts"`
	}
	decodeBody(t, w, &texts)
	require.Len(t, texts.Texts, 2)
	assert.Equal(t, outro.ID, texts.Texts[0].ID)

	w = env.do(t, http.MethodPost, "/api/v1/playlists", map[string]any{"name": "Saturday", "textIds": []string{intro.ID}})
	require.Equal(t, http.StatusCreated, w.Code)
	var playlist teleprompter.Playlist
	decodeBody(t, w, &playlist)

	w = env.do(t, http.MethodPost, "/api/v1/playlists/"+playlist.ID+"/texts", map[string]any{"textId": outro.ID})
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &playlist)
	assert.Equal(t, []string{intro.ID, outro.ID}, playlist.TextIDs)

	w = env.do(t, http.MethodPost, "/api/v1/playlists/"+playlist.ID+"/texts", map[string]any{"textId": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/texts/"+intro.ID, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/playlists/"+playlist.ID+"/texts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &texts)
	require.Len(t, texts.Texts, 1)
	assert.Equal(t, outro.ID, texts.Texts[0].ID)

	w = env.do(t, http.MethodDelete, "/api/v1/playlists/"+playlist.ID+"/texts/"+outro.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &playlist)
	assert.Empty(t, playlist.TextIDs)

	w = env.do(t, http.MethodDelete, "/api/v1/playlists/"+playlist.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodGet, "/api/v1/playlists/"+playlist.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPIKey(t *testing.T) {
	env := newTestEnv(t, testAPIKey, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/gigs", nil)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/gigs", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w = httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadyz(t *testing.T) {
	env := newTestEnv(t, "", func(context.Context) error { return errors.New("db down") })
	w := env.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	env = newTestEnv(t, "", nil)
	w = env.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestCounter(t *testing.T) {
	env := newTestEnv(t, "", nil)
	env.do(t, http.MethodGet, "/api/v1/gigs", nil)
	env.do(t, http.MethodGet, "/api/v1/gigs/missing", nil)

	families, err := env.reg.Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "bandaid_http_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			key := ""
			for _, lp := range m.GetLabel() {
				key += lp.GetName() + "=" + lp.GetValue() + ";"
			}
			counts[key] = m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, counts["code=200;handler=GET /api/v1/gigs;"])
	assert.Equal(t, 1.0, counts["code=404;handler=GET /api/v1/gigs/{id};"])
}

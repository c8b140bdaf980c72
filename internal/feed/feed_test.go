package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calfeed/internal/config"
	"calfeed/internal/ics"
	"calfeed/internal/model"
)

const feedICSBody = `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:feed-daily
DTSTART:20240101T090000Z
DTEND:20240101T100000Z
RRULE:FREQ=DAILY
SUMMARY:Morning check
END:VEVENT
END:VCALENDAR`

type captureSink struct {
	published map[string][]model.Record
}

func (s *captureSink) Publish(_ context.Context, sourceID string, records []model.Record) error {
	if s.published == nil {
		s.published = make(map[string][]model.Record)
	}
	s.published[sourceID] = records
	return nil
}

func TestServiceWindow(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.HorizonDays = 7

	svc, err := New(cfg, &captureSink{})
	require.NoError(t, err)

	now := time.Date(2024, 1, 15, 13, 45, 0, 0, time.UTC)
	win := svc.Window(now)
	assert.Equal(t, model.Date{Year: 2024, Month: time.January, Day: 15}, win.Start)
	assert.Equal(t, model.Date{Year: 2024, Month: time.January, Day: 22}, win.End)
}

func TestServiceNewRejectsBadTimezone(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Timezone = "Nowhere/Invalid"

	_, err := New(cfg, &captureSink{})
	assert.Error(t, err)
}

func TestServiceProcess(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.CacheDir = t.TempDir()

	svc, err := New(cfg, &captureSink{})
	require.NoError(t, err)

	win := ics.Window{
		Start: model.Date{Year: 2024, Month: time.January, Day: 1},
		End:   model.Date{Year: 2024, Month: time.January, Day: 4},
	}
	records, err := svc.Process([]byte(feedICSBody), win)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, model.TextValue("Morning check"), records[0]["SUMMARY"])
}

func TestRefreshAllPublishesToSink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(feedICSBody))
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.CacheDir = t.TempDir()
	cfg.HorizonDays = 3
	cfg.Sources = []config.SourceConfig{
		{ID: "home", URL: srv.URL},
	}

	sink := &captureSink{}
	svc, err := New(cfg, sink)
	require.NoError(t, err)

	require.NoError(t, svc.RefreshAll(context.Background()))

	records, ok := sink.published["home"]
	require.True(t, ok, "sink should have received records for source 'home'")
	// An unbounded daily rule is clipped to the window: one record per
	// day of the horizon.
	assert.Len(t, records, cfg.HorizonDays)
}

func TestRefreshAllReportsSourceFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.CacheDir = t.TempDir()
	cfg.Sources = []config.SourceConfig{
		{ID: "broken", URL: srv.URL},
	}

	sink := &captureSink{}
	svc, err := New(cfg, sink)
	require.NoError(t, err)

	err = svc.RefreshAll(context.Background())
	require.Error(t, err)
	assert.Empty(t, sink.published)
}

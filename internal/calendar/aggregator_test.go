package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/vinothpandian/inkdash/internal/config"
)

type memStore struct {
	cfg config.AppConfig
}

func (m *memStore) Load() (*config.AppConfig, error) {
	cfg := m.cfg
	return &cfg, nil
}

func (m *memStore) Save(cfg *config.AppConfig) error {
	m.cfg = *cfg
	return nil
}

// fakeAPI is a minimal Google Calendar API double. Calendars maps calendar ID
// to the events it returns; Statuses forces a status code per calendar ID.
type fakeAPI struct {
	CalendarList  []map[string]any
	Calendars     map[string][]map[string]any
	Statuses      map[string]int
	ListCallCount int
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "users/me/calendarList"):
			f.ListCallCount++
			writeJSON(t, w, map[string]any{"items": f.CalendarList})

		case strings.Contains(r.URL.Path, "/calendars/"):
			id := calendarIDFromPath(r.URL.Path)
			if status, ok := f.Statuses[id]; ok {
				w.WriteHeader(status)
				writeJSON(t, w, map[string]any{"error": map[string]any{"code": status}})
				return
			}
			writeJSON(t, w, map[string]any{"items": f.Calendars[id]})

		default:
			t.Errorf("unexpected API path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func calendarIDFromPath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "calendars" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("failed to encode fake response: %v", err)
	}
}

func newTestAggregator(t *testing.T, store config.Store, api *fakeAPI) *Aggregator {
	t.Helper()
	ts := httptest.NewServer(api.handler(t))
	t.Cleanup(ts.Close)
	return NewAggregator(store, option.WithEndpoint(ts.URL))
}

func timedEvent(id, summary, start, end string) map[string]any {
	return map[string]any{
		"id":      id,
		"summary": summary,
		"start":   map[string]any{"dateTime": start},
		"end":     map[string]any{"dateTime": end},
	}
}

func testWindow() Window {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	return Window{Start: start, End: start.AddDate(0, 0, 7)}
}

func TestListCalendars(t *testing.T) {
	api := &fakeAPI{
		CalendarList: []map[string]any{
			{"id": "primary-cal", "summary": "Personal", "primary": true, "backgroundColor": "#9fe1e7"},
			{"id": "work-cal"},
		},
	}
	agg := newTestAggregator(t, &memStore{}, api)

	entries, err := agg.ListCalendars(context.Background(), "token")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "Personal", entries[0].Summary)
	assert.True(t, entries[0].Primary)
	assert.Equal(t, "#9fe1e7", entries[0].BackgroundColor)
	assert.Equal(t, "Unnamed Calendar", entries[1].Summary)
}

func TestResolveSourcesConfiguredWins(t *testing.T) {
	store := &memStore{}
	store.cfg.GoogleCalendar.Calendars = []config.CalendarSource{
		{ID: "chosen", Name: "Chosen", Color: "green"},
	}
	api := &fakeAPI{}
	agg := newTestAggregator(t, store, api)

	sources, err := agg.ResolveSources(context.Background(), "token")
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "chosen", sources[0].ID)
	assert.Zero(t, api.ListCallCount, "configured calendars must not trigger discovery")
}

func TestResolveSourcesDiscoversAndPersists(t *testing.T) {
	store := &memStore{}
	api := &fakeAPI{
		CalendarList: []map[string]any{
			{"id": "cal-a", "summary": "A"},
			{"id": "cal-b", "summary": "B"},
			{"id": "cal-c", "summary": "C"},
		},
	}
	agg := newTestAggregator(t, store, api)

	sources, err := agg.ResolveSources(context.Background(), "token")
	require.NoError(t, err)
	require.Len(t, sources, 3)

	// Palette colors are assigned by discovery index.
	assert.Equal(t, "blue", sources[0].Color)
	assert.Equal(t, "purple", sources[1].Color)
	assert.Equal(t, "green", sources[2].Color)

	// Discovery result is persisted so colors stay stable.
	assert.Equal(t, sources, store.cfg.GoogleCalendar.Calendars)

	// Second resolve reads the persisted list without another API call.
	again, err := agg.ResolveSources(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, sources, again)
	assert.Equal(t, 1, api.ListCallCount)
}

func TestPaletteWrapsPastEight(t *testing.T) {
	var list []map[string]any
	for i := 0; i < 10; i++ {
		list = append(list, map[string]any{"id": string(rune('a' + i)), "summary": "Cal"})
	}
	store := &memStore{}
	agg := newTestAggregator(t, store, &fakeAPI{CalendarList: list})

	sources, err := agg.ResolveSources(context.Background(), "token")
	require.NoError(t, err)
	require.Len(t, sources, 10)
	assert.Equal(t, sources[0].Color, sources[8].Color)
	assert.Equal(t, sources[1].Color, sources[9].Color)
}

func TestFetchEventsMergesAndSorts(t *testing.T) {
	api := &fakeAPI{
		Calendars: map[string][]map[string]any{
			"cal-a": {
				timedEvent("ev-2", "Standup", "2026-03-02T14:00:00Z", "2026-03-02T14:15:00Z"),
				{
					"id":      "ev-3",
					"summary": "Conference",
					"start":   map[string]any{"date": "2026-03-03"},
					"end":     map[string]any{"date": "2026-03-04"},
				},
			},
			"cal-b": {
				timedEvent("ev-1", "", "2026-03-02T09:00:00Z", "2026-03-02T10:00:00Z"),
			},
		},
	}
	agg := newTestAggregator(t, &memStore{}, api)

	sources := []config.CalendarSource{
		{ID: "cal-a", Name: "Work", Color: "blue"},
		{ID: "cal-b", Name: "Home", Color: "green"},
	}
	events, err := agg.FetchEvents(context.Background(), "token", sources, testWindow())
	require.NoError(t, err)
	require.Len(t, events, 3)

	// Ordered by effective start across calendars; all-day events sort by date.
	assert.Equal(t, "cal-b-ev-1", events[0].ID)
	assert.Equal(t, "cal-a-ev-2", events[1].ID)
	assert.Equal(t, "cal-a-ev-3", events[2].ID)

	// Source annotations and the untitled fallback.
	assert.Equal(t, "(No title)", events[0].Summary)
	assert.Equal(t, "Home", events[0].CalendarName)
	assert.Equal(t, "green", events[0].CalendarColor)
	assert.Equal(t, "2026-03-03", events[2].EffectiveStart())
}

func TestFetchEventsDropsEventsWithoutTimes(t *testing.T) {
	api := &fakeAPI{
		Calendars: map[string][]map[string]any{
			"cal-a": {
				{"id": "no-times", "summary": "Broken"},
				{
					"id":      "no-end",
					"summary": "Half broken",
					"start":   map[string]any{"dateTime": "2026-03-02T09:00:00Z"},
				},
				timedEvent("ok", "Fine", "2026-03-02T09:00:00Z", "2026-03-02T10:00:00Z"),
			},
		},
	}
	agg := newTestAggregator(t, &memStore{}, api)

	events, err := agg.FetchEvents(context.Background(), "token",
		[]config.CalendarSource{{ID: "cal-a", Name: "Work", Color: "blue"}}, testWindow())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "cal-a-ok", events[0].ID)
}

func TestFetchEventsToleratesSingleSourceFailure(t *testing.T) {
	api := &fakeAPI{
		Calendars: map[string][]map[string]any{
			"cal-good": {timedEvent("ok", "Fine", "2026-03-02T09:00:00Z", "2026-03-02T10:00:00Z")},
		},
		Statuses: map[string]int{"cal-bad": http.StatusInternalServerError},
	}
	agg := newTestAggregator(t, &memStore{}, api)

	sources := []config.CalendarSource{
		{ID: "cal-bad", Name: "Bad", Color: "red"},
		{ID: "cal-good", Name: "Good", Color: "blue"},
	}
	events, err := agg.FetchEvents(context.Background(), "token", sources, testWindow())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "cal-good-ok", events[0].ID)
}

func TestFetchEventsEscalatesAuthExpiry(t *testing.T) {
	api := &fakeAPI{
		Calendars: map[string][]map[string]any{
			"cal-good": {timedEvent("ok", "Fine", "2026-03-02T09:00:00Z", "2026-03-02T10:00:00Z")},
		},
		Statuses: map[string]int{"cal-bad": http.StatusUnauthorized},
	}
	agg := newTestAggregator(t, &memStore{}, api)

	sources := []config.CalendarSource{
		{ID: "cal-bad", Name: "Bad", Color: "red"},
		{ID: "cal-good", Name: "Good", Color: "blue"},
	}
	_, err := agg.FetchEvents(context.Background(), "token", sources, testWindow())
	assert.ErrorIs(t, err, ErrAuthExpired)
}

func TestListCalendarsEscalatesAuthExpiry(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	agg := NewAggregator(&memStore{}, option.WithEndpoint(ts.URL))
	_, err := agg.ListCalendars(context.Background(), "token")
	assert.ErrorIs(t, err, ErrAuthExpired)
}

func TestEffectiveStartPrefersDateTime(t *testing.T) {
	e := Event{Start: EventTime{DateTime: "2026-03-02T09:00:00Z", Date: "2026-03-02"}}
	assert.Equal(t, "2026-03-02T09:00:00Z", e.EffectiveStart())

	allDay := Event{Start: EventTime{Date: "2026-03-02"}}
	assert.Equal(t, "2026-03-02", allDay.EffectiveStart())
}

package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/vinothpandian/inkdash/internal/config"
	"github.com/vinothpandian/inkdash/internal/logger"
)

// ErrAuthExpired means a resource endpoint answered 401 despite a seemingly
// valid cached token. Re-authentication is needed, not a retry.
var ErrAuthExpired = errors.New("Google Calendar authentication expired, please re-authenticate")

// defaultColors is the fixed palette assigned to auto-discovered calendars
// by discovery order.
var defaultColors = []string{"blue", "purple", "green", "red", "orange", "pink", "cyan", "amber"}

// maxEventsPerCalendar caps the results requested from each source.
const maxEventsPerCalendar = 100

// EventTime mirrors the provider's start/end representation: exactly one of
// DateTime (timed event) or Date (all-day event) is set.
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// Event is a calendar event annotated with the source it came from. The ID
// is namespaced by calendar so identifiers stay unique across sources.
type Event struct {
	ID            string    `json:"id"`
	Summary       string    `json:"summary"`
	Description   string    `json:"description,omitempty"`
	Start         EventTime `json:"start"`
	End           EventTime `json:"end"`
	Location      string    `json:"location,omitempty"`
	HTMLLink      string    `json:"htmlLink,omitempty"`
	CalendarID    string    `json:"calendarId"`
	CalendarName  string    `json:"calendarName"`
	CalendarColor string    `json:"calendarColor"`
}

// EffectiveStart is the value events are ordered by: the timed start when
// present, the all-day date otherwise. Lexicographic comparison of these
// zero-padded ISO-8601 strings coincides with chronological order.
func (e Event) EffectiveStart() string {
	if e.Start.DateTime != "" {
		return e.Start.DateTime
	}
	return e.Start.Date
}

// ListEntry is one calendar from the account's calendar list.
type ListEntry struct {
	ID              string `json:"id"`
	Summary         string `json:"summary"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	Primary         bool   `json:"primary"`
}

// Window is the half-open fetch interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Aggregator discovers calendar sources and merges their events into one
// timeline. It is stateless between calls; sources are read and written
// through the injected config store.
type Aggregator struct {
	store config.Store
	opts  []option.ClientOption
}

// NewAggregator creates an aggregator persisting discovered sources through
// store. Extra client options are mainly for pointing tests at a fake API.
func NewAggregator(store config.Store, opts ...option.ClientOption) *Aggregator {
	return &Aggregator{store: store, opts: opts}
}

func (a *Aggregator) service(ctx context.Context, accessToken string) (*gcal.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, a.opts...)

	srv, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return srv, nil
}

// ListCalendars retrieves all calendars the account has access to.
func (a *Aggregator) ListCalendars(ctx context.Context, accessToken string) ([]ListEntry, error) {
	srv, err := a.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	list, err := srv.CalendarList.List().Context(ctx).Do()
	if err != nil {
		if isUnauthorized(err) {
			return nil, ErrAuthExpired
		}
		return nil, fmt.Errorf("failed to retrieve calendar list: %w", err)
	}

	entries := make([]ListEntry, 0, len(list.Items))
	for _, item := range list.Items {
		summary := item.Summary
		if summary == "" {
			summary = "Unnamed Calendar"
		}
		entries = append(entries, ListEntry{
			ID:              item.Id,
			Summary:         summary,
			BackgroundColor: item.BackgroundColor,
			Primary:         item.Primary,
		})
	}

	return entries, nil
}

// ResolveSources returns the calendars the dashboard should display. A
// non-empty configured list wins; otherwise calendars are discovered, given
// a palette color by discovery index, and persisted so colors stay stable
// across sessions without re-querying.
func (a *Aggregator) ResolveSources(ctx context.Context, accessToken string) ([]config.CalendarSource, error) {
	cfg, err := a.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if len(cfg.GoogleCalendar.Calendars) > 0 {
		return cfg.GoogleCalendar.Calendars, nil
	}

	entries, err := a.ListCalendars(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	sources := make([]config.CalendarSource, 0, len(entries))
	for i, entry := range entries {
		sources = append(sources, config.CalendarSource{
			ID:    entry.ID,
			Name:  entry.Summary,
			Color: defaultColors[i%len(defaultColors)],
		})
	}

	cfg.GoogleCalendar.Calendars = sources
	if err := a.store.Save(cfg); err != nil {
		logger.Warn("failed to persist discovered calendars", "error", err)
	} else {
		logger.Info("auto-discovered calendars persisted", "count", len(sources))
	}

	return sources, nil
}

// FetchEvents queries each source for events within the window, with
// recurring events already expanded to single occurrences by the provider,
// and merges them into one timeline sorted by effective start. A non-auth
// failure on one source contributes zero events without aborting the rest;
// a 401 from any source escalates immediately since a stale token affects
// all sources identically.
func (a *Aggregator) FetchEvents(ctx context.Context, accessToken string, sources []config.CalendarSource, window Window) ([]Event, error) {
	srv, err := a.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	var all []Event
	for _, source := range sources {
		items, err := a.fetchCalendarEvents(ctx, srv, source.ID, window)
		if err != nil {
			if errors.Is(err, ErrAuthExpired) {
				return nil, err
			}
			logger.Warn("failed to fetch events from calendar", "calendar_id", source.ID, "error", err)
			continue
		}

		for _, item := range items {
			event, ok := convertEvent(item, source)
			if !ok {
				// Provider anomaly, not an error condition
				logger.Debug("dropping event without start or end", "event_id", item.Id, "calendar_id", source.ID)
				continue
			}
			all = append(all, event)
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].EffectiveStart() < all[j].EffectiveStart()
	})

	logger.Info("aggregated calendar events", "event_count", len(all), "calendar_count", len(sources))
	return all, nil
}

func (a *Aggregator) fetchCalendarEvents(ctx context.Context, srv *gcal.Service, calendarID string, window Window) ([]*gcal.Event, error) {
	logger.Debug("fetching events", "calendar_id", calendarID, "time_min", window.Start, "time_max", window.End)

	events, err := srv.Events.List(calendarID).
		TimeMin(window.Start.Format(time.RFC3339)).
		TimeMax(window.End.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(maxEventsPerCalendar).
		Context(ctx).
		Do()
	if err != nil {
		if isUnauthorized(err) {
			return nil, ErrAuthExpired
		}
		return nil, err
	}

	return events.Items, nil
}

func convertEvent(item *gcal.Event, source config.CalendarSource) (Event, bool) {
	if !hasTime(item.Start) || !hasTime(item.End) {
		return Event{}, false
	}

	summary := item.Summary
	if summary == "" {
		summary = "(No title)"
	}

	return Event{
		ID:            fmt.Sprintf("%s-%s", source.ID, item.Id),
		Summary:       summary,
		Description:   item.Description,
		Start:         EventTime{DateTime: item.Start.DateTime, Date: item.Start.Date, TimeZone: item.Start.TimeZone},
		End:           EventTime{DateTime: item.End.DateTime, Date: item.End.Date, TimeZone: item.End.TimeZone},
		Location:      item.Location,
		HTMLLink:      item.HtmlLink,
		CalendarID:    source.ID,
		CalendarName:  source.Name,
		CalendarColor: source.Color,
	}, true
}

func hasTime(dt *gcal.EventDateTime) bool {
	return dt != nil && (dt.DateTime != "" || dt.Date != "")
}

func isUnauthorized(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized
}

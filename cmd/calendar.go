package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vinothpandian/inkdash/internal/auth"
	"github.com/vinothpandian/inkdash/internal/cache"
	"github.com/vinothpandian/inkdash/internal/calendar"
	"github.com/vinothpandian/inkdash/internal/logger"
)

var (
	eventsDays int
	eventsJSON bool
)

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Google Calendar commands",
}

var calendarListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available calendars",
	Long: `List all calendars accessible with your Google account.

The IDs shown here can be placed in the google_calendar.calendars section of
the config file to pin which calendars the dashboard displays. When that
section is empty, all calendars are auto-discovered and persisted with
assigned colors on the first fetch.`,
	RunE: runCalendarList,
}

var calendarEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Fetch events from all configured calendars",
	Long: `Fetch upcoming events from every configured calendar, merged into a
single list ordered by start time. Recurring events arrive already expanded
into individual occurrences. The result is cached so the dashboard can fall
back to the last good snapshot when the API is unreachable.`,
	RunE: runCalendarEvents,
}

func init() {
	calendarEventsCmd.Flags().IntVar(&eventsDays, "days", 7, "how many days ahead to fetch")
	calendarEventsCmd.Flags().BoolVar(&eventsJSON, "json", false, "print raw JSON instead of a summary")
	calendarCmd.AddCommand(calendarListCmd)
	calendarCmd.AddCommand(calendarEventsCmd)
	rootCmd.AddCommand(calendarCmd)
}

func runCalendarList(cmd *cobra.Command, args []string) error {
	coordinator := auth.NewCoordinator(store)
	token, err := coordinator.GetValidAccessToken(cmd.Context())
	if err != nil {
		return authHint(err)
	}

	aggregator := calendar.NewAggregator(store)
	entries, err := aggregator.ListCalendars(cmd.Context(), token)
	if err != nil {
		return authHint(err)
	}

	fmt.Println("=== Available Calendars ===")
	for _, entry := range entries {
		name := entry.Summary
		if entry.Primary {
			name += " (primary)"
		}
		fmt.Printf("%s\n", name)
		fmt.Printf("  ID: %s\n", entry.ID)
		if entry.BackgroundColor != "" {
			fmt.Printf("  Color: %s\n", entry.BackgroundColor)
		}
		fmt.Println()
	}
	fmt.Printf("Total calendars: %d\n", len(entries))

	return nil
}

func runCalendarEvents(cmd *cobra.Command, args []string) error {
	events, err := fetchCalendarEvents(cmd, eventsDays)
	if err != nil {
		return err
	}

	if eventsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	}

	if len(events) == 0 {
		fmt.Println("No upcoming events.")
		return nil
	}

	fmt.Printf("=== Upcoming Events (%d) ===\n", len(events))
	for _, event := range events {
		when := event.Start.DateTime
		if when == "" {
			when = event.Start.Date + " (all day)"
		}
		fmt.Printf("%s  %s  [%s]\n", when, event.Summary, event.CalendarName)
	}

	return nil
}

// fetchCalendarEvents runs the full token-resolve-fetch pipeline and updates
// the event cache on success. A snapshot younger than the configured refresh
// interval is served as-is without touching the API.
func fetchCalendarEvents(cmd *cobra.Command, days int) ([]calendar.Event, error) {
	cfg, err := store.Load()
	if err != nil {
		return nil, err
	}

	eventCache := loadEventCache()
	interval := time.Duration(cfg.GoogleCalendar.RefreshIntervalMinutes) * time.Minute
	if interval > 0 && eventCache.IsFresh(interval) {
		logger.Debug("event cache within refresh interval, skipping fetch",
			"last_sync", eventCache.LastSync, "interval", interval)
		return eventCache.Events, nil
	}

	coordinator := auth.NewCoordinator(store)
	token, err := coordinator.GetValidAccessToken(cmd.Context())
	if err != nil {
		return nil, authHint(err)
	}

	aggregator := calendar.NewAggregator(store)
	sources, err := aggregator.ResolveSources(cmd.Context(), token)
	if err != nil {
		return nil, authHint(err)
	}

	now := time.Now()
	window := calendar.Window{Start: now, End: now.AddDate(0, 0, days)}
	events, err := aggregator.FetchEvents(cmd.Context(), token, sources, window)
	if err != nil {
		return nil, authHint(err)
	}

	eventCache.Update(events)
	if saveErr := eventCache.Save(); saveErr != nil {
		logger.Warn("failed to update event cache", "error", saveErr)
	}

	return events, nil
}

// loadEventCache loads the event snapshot, tolerating a missing or corrupt
// cache file. A bad cache never blocks fetching or writing a fresh snapshot.
func loadEventCache() *cache.Cache {
	eventCache := cache.New(cacheDir)
	if err := eventCache.Load(); err != nil {
		logger.Warn("failed to load event cache", "error", err)
	}
	return eventCache
}

// authHint appends the command the user needs when the failure is an
// authentication problem.
func authHint(err error) error {
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated),
		errors.Is(err, auth.ErrNoRefreshToken),
		errors.Is(err, calendar.ErrAuthExpired):
		return fmt.Errorf("%w. Run 'inkdash auth' first", err)
	default:
		return err
	}
}

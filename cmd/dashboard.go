package cmd

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vinothpandian/inkdash/internal/cache"
	"github.com/vinothpandian/inkdash/internal/calendar"
	"github.com/vinothpandian/inkdash/internal/config"
	"github.com/vinothpandian/inkdash/internal/logger"
	"github.com/vinothpandian/inkdash/internal/stocks"
	"github.com/vinothpandian/inkdash/internal/ticktick"
	"github.com/vinothpandian/inkdash/internal/timeline"
	"github.com/vinothpandian/inkdash/internal/weather"
)

var dashboardDays int

// dashboardData is the combined JSON document the display shell renders. Each
// section is independent; a failed section is null with its error recorded.
type dashboardData struct {
	Weather     *weather.Data        `json:"weather"`
	Stocks      []stocks.Data        `json:"stocks"`
	Tasks       *ticktick.Data       `json:"tasks"`
	Events      []calendar.Event     `json:"events"`
	EventsStale bool                 `json:"eventsStale"`
	Timeline    *timeline.Response   `json:"timeline"`
	Timezones   []timezoneClock      `json:"timezones"`
	Display     config.DisplayConfig `json:"display"`
	Refresh     refreshIntervals     `json:"refresh"`
	Errors      map[string]string    `json:"errors,omitempty"`
	GeneratedAt string               `json:"generatedAt"`
}

// refreshIntervals tells the shell how often to re-poll each section.
type refreshIntervals struct {
	CalendarMinutes int `json:"calendarMinutes"`
	TasksMinutes    int `json:"tasksMinutes"`
}

// timezoneClock is one world-clock entry resolved to the current local time.
type timezoneClock struct {
	Name   string `json:"name"`
	TZ     string `json:"tz"`
	Time   string `json:"time"`
	Offset string `json:"offset"`
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Emit the full dashboard document as JSON",
	Long: `Fetch every dashboard section (weather, stocks, tasks, calendar
events and the day timeline) and print them as a single JSON document.

Sections fail independently: an unreachable API nulls that section and
records the error under "errors" instead of failing the whole command.
Calendar events additionally fall back to the last cached snapshot.`,
	RunE: runDashboard,
}

func init() {
	dashboardCmd.Flags().IntVar(&dashboardDays, "days", 7, "how many days of calendar events to include")
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := store.Load()
	if err != nil {
		return err
	}

	doc := dashboardData{
		Errors:      map[string]string{},
		GeneratedAt: time.Now().Format(time.RFC3339),
	}

	if data, err := weather.NewClient().Fetch(ctx, cfg.Weather); err != nil {
		logger.Warn("weather section failed", "error", err)
		doc.Errors["weather"] = err.Error()
	} else {
		doc.Weather = data
	}

	if quotes, err := stocks.NewClient().Fetch(ctx, cfg.Stocks.Tickers); err != nil {
		logger.Warn("stocks section failed", "error", err)
		doc.Errors["stocks"] = err.Error()
	} else {
		doc.Stocks = quotes
	}

	if tasks, err := ticktick.NewClient().Fetch(ctx, cfg.TickTick.AccessToken); err != nil {
		logger.Warn("tasks section failed", "error", err)
		doc.Errors["tasks"] = err.Error()
	} else {
		doc.Tasks = tasks
	}

	if events, err := fetchCalendarEvents(cmd, dashboardDays); err != nil {
		logger.Warn("calendar section failed, trying cache", "error", err)
		doc.Errors["events"] = err.Error()
		doc.Events, doc.EventsStale = cachedEvents()
	} else {
		doc.Events = events
	}

	if timelinePath, err := timeline.DefaultPath(); err != nil {
		doc.Errors["timeline"] = err.Error()
	} else if resp, err := timeline.ForToday(timelinePath); err != nil {
		logger.Warn("timeline section failed", "error", err)
		doc.Errors["timeline"] = err.Error()
	} else {
		doc.Timeline = resp
	}

	doc.Timezones = resolveTimezones(cfg.Timezones.Zones)
	doc.Display = cfg.Display
	doc.Refresh = refreshIntervals{
		CalendarMinutes: cfg.GoogleCalendar.RefreshIntervalMinutes,
		TasksMinutes:    cfg.TickTick.RefreshIntervalMinutes,
	}

	if len(doc.Errors) == 0 {
		doc.Errors = nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// resolveTimezones renders the configured world clocks. An unknown zone name
// is skipped rather than failing the section.
func resolveTimezones(zones []config.TimezoneEntry) []timezoneClock {
	now := time.Now()
	clocks := make([]timezoneClock, 0, len(zones))
	for _, zone := range zones {
		loc, err := time.LoadLocation(zone.TZ)
		if err != nil {
			logger.Warn("unknown timezone in config", "tz", zone.TZ, "error", err)
			continue
		}
		local := now.In(loc)
		clocks = append(clocks, timezoneClock{
			Name:   zone.Name,
			TZ:     zone.TZ,
			Time:   local.Format(time.RFC3339),
			Offset: local.Format("-07:00"),
		})
	}
	return clocks
}

// cachedEvents loads the last good event snapshot as a degraded fallback.
func cachedEvents() ([]calendar.Event, bool) {
	eventCache := cache.New(cacheDir)
	if err := eventCache.Load(); err != nil {
		logger.Warn("failed to load event cache", "error", err)
		return nil, false
	}
	if eventCache.LastSync.IsZero() {
		return nil, false
	}
	logger.Info("serving cached events", "count", eventCache.EventCount(), "last_sync", eventCache.LastSync)
	return eventCache.Events, true
}

package timeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vinothpandian/inkdash/internal/config"
)

// Event is a single point or range boundary on the day timeline. Type is one
// of "marker", "range-start" or "range-end"; Time is "HH:MM".
type Event struct {
	Time  string `mapstructure:"time" toml:"time" json:"time"`
	Label string `mapstructure:"label" toml:"label" json:"label"`
	Type  string `mapstructure:"type" toml:"type" json:"type"`
}

// Schedule is an ordered list of timeline events for one day shape.
type Schedule struct {
	Events []Event `mapstructure:"events" toml:"events"`
}

// Override replaces the default schedule on the listed weekdays
// (lowercase names: monday, tuesday, ...).
type Override struct {
	Days   []string `mapstructure:"days" toml:"days"`
	Events []Event  `mapstructure:"events" toml:"events"`
}

// Config is the full timeline.toml contents.
type Config struct {
	StartHour int        `mapstructure:"start_hour" toml:"start_hour"`
	EndHour   int        `mapstructure:"end_hour" toml:"end_hour"`
	Default   Schedule   `mapstructure:"default" toml:"default"`
	Overrides []Override `mapstructure:"overrides" toml:"overrides"`
}

// Response is the resolved timeline for a single day.
type Response struct {
	Events    []Event `json:"events"`
	StartHour int     `json:"startHour"`
	EndHour   int     `json:"endHour"`
}

// DefaultConfig is the built-in schedule used when no timeline.toml exists.
func DefaultConfig() Config {
	return Config{
		StartHour: 6,
		EndHour:   23,
		Default: Schedule{
			Events: []Event{
				{Time: "06:30", Label: "Alarm", Type: "marker"},
				{Time: "07:00", Label: "Wake up", Type: "marker"},
				{Time: "08:30", Label: "Work", Type: "range-start"},
				{Time: "18:00", Label: "", Type: "range-end"},
				{Time: "18:30", Label: "Bubble time", Type: "marker"},
				{Time: "21:30", Label: "In bed", Type: "marker"},
				{Time: "22:30", Label: "Sleep", Type: "marker"},
			},
		},
	}
}

// DefaultPath returns the timeline.toml location in the config directory.
func DefaultPath() (string, error) {
	dir, err := config.DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "timeline.toml"), nil
}

// Load reads the timeline config from path, falling back to the built-in
// default when the file is absent.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		return &cfg, nil
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.SetConfigFile(path)
	v.SetDefault("start_hour", 6)
	v.SetDefault("end_hour", 23)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read timeline config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse timeline config: %w", err)
	}

	return &cfg, nil
}

// ForDay resolves the schedule for the given weekday: the first override
// listing the day wins, otherwise the default schedule applies.
func (c *Config) ForDay(weekday time.Weekday) Response {
	day := strings.ToLower(weekday.String())

	events := c.Default.Events
outer:
	for _, o := range c.Overrides {
		for _, d := range o.Days {
			if strings.ToLower(d) == day {
				events = o.Events
				break outer
			}
		}
	}

	return Response{
		Events:    events,
		StartHour: c.StartHour,
		EndHour:   c.EndHour,
	}
}

// ForToday resolves the schedule for the current weekday.
func ForToday(path string) (*Response, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	resp := cfg.ForDay(time.Now().Weekday())
	return &resp, nil
}

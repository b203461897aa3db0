package config

import (
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// AppConfig is the whole persisted configuration record. It is always read
// and written as one unit; callers mutate a loaded copy and save it back.
type AppConfig struct {
	Weather        WeatherConfig        `mapstructure:"weather" toml:"weather"`
	Stocks         StocksConfig         `mapstructure:"stocks" toml:"stocks"`
	TickTick       TickTickConfig       `mapstructure:"ticktick" toml:"ticktick"`
	GoogleCalendar GoogleCalendarConfig `mapstructure:"google_calendar" toml:"google_calendar"`
	Timezones      TimezonesConfig      `mapstructure:"timezones" toml:"timezones"`
	Display        DisplayConfig        `mapstructure:"display" toml:"display"`
}

type WeatherConfig struct {
	Latitude  float64 `mapstructure:"latitude" toml:"latitude"`
	Longitude float64 `mapstructure:"longitude" toml:"longitude"`
	Timezone  string  `mapstructure:"timezone" toml:"timezone"`
	Location  string  `mapstructure:"location" toml:"location"`
}

type StocksConfig struct {
	Tickers []string `mapstructure:"tickers" toml:"tickers"`
}

type TickTickConfig struct {
	AccessToken            string `mapstructure:"access_token" toml:"access_token"`
	RefreshIntervalMinutes int    `mapstructure:"refresh_interval_minutes" toml:"refresh_interval_minutes"`
}

// GoogleCalendarConfig holds the operator-provided OAuth client credentials
// and the mutable token record replaced wholesale on every exchange/refresh.
type GoogleCalendarConfig struct {
	ClientID               string           `mapstructure:"client_id" toml:"client_id"`
	ClientSecret           string           `mapstructure:"client_secret" toml:"client_secret"`
	AccessToken            string           `mapstructure:"access_token" toml:"access_token"`
	RefreshToken           string           `mapstructure:"refresh_token" toml:"refresh_token"`
	TokenExpiry            string           `mapstructure:"token_expiry" toml:"token_expiry"`
	RefreshIntervalMinutes int              `mapstructure:"refresh_interval_minutes" toml:"refresh_interval_minutes"`
	Calendars              []CalendarSource `mapstructure:"calendars" toml:"calendars"`
}

// CalendarSource is a calendar the dashboard displays, either configured by
// the user or auto-discovered and persisted with an assigned color.
type CalendarSource struct {
	ID    string `mapstructure:"id" toml:"id"`
	Name  string `mapstructure:"name" toml:"name"`
	Color string `mapstructure:"color" toml:"color"`
}

type TimezoneEntry struct {
	Name string `mapstructure:"name" toml:"name"`
	TZ   string `mapstructure:"tz" toml:"tz"`
}

type TimezonesConfig struct {
	Zones []TimezoneEntry `mapstructure:"zones" toml:"zones"`
}

type DisplayConfig struct {
	Fullscreen bool `mapstructure:"fullscreen" toml:"fullscreen"`
}

// Store reads and writes the configuration as a whole record.
type Store interface {
	Load() (*AppConfig, error)
	Save(*AppConfig) error
}

var defaultConfig = AppConfig{
	Weather: WeatherConfig{
		Latitude:  43.6532,
		Longitude: -79.3832,
		Timezone:  "America/Toronto",
		Location:  "Toronto",
	},
	Stocks: StocksConfig{
		Tickers: []string{"VEQT.TO", "VGRO.TO"},
	},
	TickTick: TickTickConfig{
		RefreshIntervalMinutes: 15,
	},
	GoogleCalendar: GoogleCalendarConfig{
		RefreshIntervalMinutes: 10,
	},
	Timezones: TimezonesConfig{
		Zones: []TimezoneEntry{
			{Name: "London", TZ: "Europe/London"},
			{Name: "Sydney", TZ: "Australia/Sydney"},
		},
	},
	Display: DisplayConfig{Fullscreen: false},
}

// FileStore persists the configuration as a TOML file.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the given config file path. An empty
// path resolves to the default location under the user config directory.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		dir, err := DefaultConfigDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "config.toml")
	}
	return &FileStore{path: path}, nil
}

// Path returns the config file location backing this store.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load() (*AppConfig, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		// First run: persist defaults so the user has a file to edit
		cfg := defaultConfig
		if err := s.Save(&cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return &cfg, nil
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.SetConfigFile(s.path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func (s *FileStore) Save(cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Config carries OAuth tokens, keep it private
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("weather.latitude", defaultConfig.Weather.Latitude)
	v.SetDefault("weather.longitude", defaultConfig.Weather.Longitude)
	v.SetDefault("weather.timezone", defaultConfig.Weather.Timezone)
	v.SetDefault("weather.location", defaultConfig.Weather.Location)

	v.SetDefault("stocks.tickers", defaultConfig.Stocks.Tickers)

	v.SetDefault("ticktick.refresh_interval_minutes", defaultConfig.TickTick.RefreshIntervalMinutes)

	v.SetDefault("google_calendar.refresh_interval_minutes", defaultConfig.GoogleCalendar.RefreshIntervalMinutes)

	v.SetDefault("display.fullscreen", defaultConfig.Display.Fullscreen)
}

// DefaultConfigDir returns ~/.config/inkdash (or the platform equivalent).
func DefaultConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(base, "inkdash"), nil
}

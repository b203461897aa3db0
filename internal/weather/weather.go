package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vinothpandian/inkdash/internal/config"
	"github.com/vinothpandian/inkdash/internal/logger"
)

// DefaultBaseURL is the Open-Meteo forecast endpoint. No API key required.
const DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

// Data is the weather snapshot shape the dashboard shell consumes.
type Data struct {
	Location       Location `json:"location"`
	Condition      string   `json:"condition"`
	Temperature    int      `json:"temperature"`
	FeelsLike      int      `json:"feelsLike"`
	Humidity       int      `json:"humidity"`
	WindSpeed      int      `json:"windSpeed"`
	Unit           string   `json:"unit"`
	Sunrise        string   `json:"sunrise"`
	Sunset         string   `json:"sunset"`
	HourlyForecast []Hourly `json:"hourlyForecast"`
	LastUpdated    string   `json:"lastUpdated"`
}

type Location struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Hourly struct {
	Hour        int    `json:"hour"`
	Temperature int    `json:"temperature"`
	Condition   string `json:"condition"`
}

type openMeteoResponse struct {
	Current struct {
		Temperature2m       float64 `json:"temperature_2m"`
		ApparentTemperature float64 `json:"apparent_temperature"`
		WeatherCode         int     `json:"weather_code"`
		RelativeHumidity2m  int     `json:"relative_humidity_2m"`
		WindSpeed10m        float64 `json:"wind_speed_10m"`
	} `json:"current"`
	Hourly struct {
		Time          []string  `json:"time"`
		Temperature2m []float64 `json:"temperature_2m"`
		WeatherCode   []int     `json:"weather_code"`
	} `json:"hourly"`
	Daily struct {
		Sunrise []string `json:"sunrise"`
		Sunset  []string `json:"sunset"`
	} `json:"daily"`
}

// Client fetches forecasts from Open-Meteo.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
}

func NewClient() *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		BaseURL:    DefaultBaseURL,
	}
}

// Fetch returns current conditions plus a fixed 24-hour forecast for the
// configured coordinates.
func (c *Client) Fetch(ctx context.Context, cfg config.WeatherConfig) (*Data, error) {
	params := url.Values{
		"latitude":      {strconv.FormatFloat(cfg.Latitude, 'f', -1, 64)},
		"longitude":     {strconv.FormatFloat(cfg.Longitude, 'f', -1, 64)},
		"current":       {"temperature_2m,apparent_temperature,weather_code,relative_humidity_2m,wind_speed_10m"},
		"hourly":        {"temperature_2m,weather_code"},
		"daily":         {"sunrise,sunset"},
		"timezone":      {cfg.Timezone},
		"forecast_days": {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create weather request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather API request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather API error: %s", resp.Status)
	}

	var data openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse weather response: %w", err)
	}

	hourly := make([]Hourly, 0, 24)
	for hour := 0; hour < 24; hour++ {
		var temp float64
		var code int
		if hour < len(data.Hourly.Temperature2m) {
			temp = data.Hourly.Temperature2m[hour]
		}
		if hour < len(data.Hourly.WeatherCode) {
			code = data.Hourly.WeatherCode[hour]
		}
		hourly = append(hourly, Hourly{
			Hour:        hour,
			Temperature: int(math.Round(temp)),
			Condition:   mapWeatherCode(code),
		})
	}

	out := &Data{
		Location: Location{
			Name:      cfg.Location,
			Latitude:  cfg.Latitude,
			Longitude: cfg.Longitude,
		},
		Condition:      mapWeatherCode(data.Current.WeatherCode),
		Temperature:    int(math.Round(data.Current.Temperature2m)),
		FeelsLike:      int(math.Round(data.Current.ApparentTemperature)),
		Humidity:       data.Current.RelativeHumidity2m,
		WindSpeed:      int(math.Round(data.Current.WindSpeed10m)),
		Unit:           "celsius",
		HourlyForecast: hourly,
		LastUpdated:    time.Now().Format(time.RFC3339),
	}
	if len(data.Daily.Sunrise) > 0 {
		out.Sunrise = data.Daily.Sunrise[0]
	}
	if len(data.Daily.Sunset) > 0 {
		out.Sunset = data.Daily.Sunset[0]
	}

	return out, nil
}

// mapWeatherCode folds WMO weather codes into the condition buckets the
// shell knows how to render.
func mapWeatherCode(code int) string {
	switch {
	case code == 0:
		return "clear"
	case code >= 1 && code <= 3:
		return "partly-cloudy"
	case code >= 45 && code <= 48:
		return "fog"
	case code >= 51 && code <= 67:
		return "rain"
	case code >= 71 && code <= 77:
		return "snow"
	case code >= 80 && code <= 82:
		return "rain"
	case code >= 85 && code <= 86:
		return "snow"
	case code >= 95 && code <= 99:
		return "thunderstorm"
	default:
		return "cloudy"
	}
}


package stocks

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/vinothpandian/inkdash/internal/logger"
)

// DefaultBaseURL is the Yahoo Finance chart endpoint.
const DefaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// Yahoo rejects requests without a browser-like user agent
const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"

// sparklinePoints is how many closing prices the shell's sparkline shows.
const sparklinePoints = 21

// Data is one ticker's quote for the dashboard.
type Data struct {
	Ticker        string    `json:"ticker"`
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	Currency      string    `json:"currency"`
	SparklineData []float64 `json:"sparklineData"`
	PriceHint     int       `json:"priceHint"`
	LastUpdated   string    `json:"lastUpdated"`
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		RegularMarketPrice float64 `json:"regularMarketPrice"`
		ChartPreviousClose float64 `json:"chartPreviousClose"`
		Currency           string  `json:"currency"`
		ShortName          string  `json:"shortName"`
		PriceHint          int     `json:"priceHint"`
	} `json:"meta"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Client fetches quotes from the Yahoo Finance chart API.
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

// Fetch returns quotes for the given tickers. Individual ticker failures are
// collected; an error is returned only when every ticker fails.
func (c *Client) Fetch(ctx context.Context, tickers []string) ([]Data, error) {
	var quotes []Data
	var failures []string

	for _, ticker := range tickers {
		quote, err := c.fetchSingle(ctx, ticker)
		if err != nil {
			logger.Warn("failed to fetch quote", "ticker", ticker, "error", err)
			failures = append(failures, err.Error())
			continue
		}
		quotes = append(quotes, *quote)
	}

	if len(quotes) == 0 && len(failures) > 0 {
		return nil, fmt.Errorf("failed to fetch stocks: %s", strings.Join(failures, ", "))
	}

	return quotes, nil
}

func (c *Client) fetchSingle(ctx context.Context, ticker string) (*Data, error) {
	reqURL := fmt.Sprintf("%s/%s?interval=1d&range=1mo", c.BaseURL, ticker)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", ticker, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stock API request failed for %s: %w", ticker, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stock API error for %s: %s", ticker, resp.Status)
	}

	var data chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse stock response for %s: %w", ticker, err)
	}

	if data.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error for %s: %s", ticker, data.Chart.Error.Description)
	}
	if len(data.Chart.Result) == 0 {
		return nil, fmt.Errorf("no data returned for %s", ticker)
	}

	result := data.Chart.Result[0]
	meta := result.Meta

	var closePrices []float64
	if len(result.Indicators.Quote) > 0 {
		for _, p := range result.Indicators.Quote[0].Close {
			if p != nil {
				closePrices = append(closePrices, *p)
			}
		}
	}

	sparkline := closePrices
	if len(sparkline) > sparklinePoints {
		sparkline = sparkline[len(sparkline)-sparklinePoints:]
	}

	// Previous close: second-to-last trading day when available, otherwise
	// the chart's own previous close, otherwise flat.
	previous := meta.RegularMarketPrice
	switch {
	case len(closePrices) >= 2:
		previous = closePrices[len(closePrices)-2]
	case meta.ChartPreviousClose > 0:
		previous = meta.ChartPreviousClose
	}

	change := meta.RegularMarketPrice - previous
	changePercent := 0.0
	if previous > 0 {
		changePercent = change / previous * 100
	}

	name := meta.ShortName
	if name == "" {
		name = ticker
	}

	priceHint := meta.PriceHint
	if priceHint == 0 {
		priceHint = 2
	}
	multiplier := math.Pow(10, float64(priceHint))

	return &Data{
		Ticker:        ticker,
		Name:          name,
		Price:         meta.RegularMarketPrice,
		Change:        math.Round(change*multiplier) / multiplier,
		ChangePercent: math.Round(changePercent*100) / 100,
		Currency:      currencySymbol(strings.ToUpper(meta.Currency)),
		SparklineData: sparkline,
		PriceHint:     priceHint,
		LastUpdated:   time.Now().Format(time.RFC3339),
	}, nil
}

func currencySymbol(currency string) string {
	switch currency {
	case "EUR":
		return "€"
	case "JPY", "CNY":
		return "¥"
	case "CAD":
		return "C$"
	case "AUD":
		return "A$"
	case "GBP":
		return "£"
	case "CHF":
		return "Fr"
	case "INR":
		return "₹"
	case "KRW":
		return "₩"
	case "HKD":
		return "HK$"
	case "SGD":
		return "S$"
	case "SEK", "NOK", "DKK":
		return "kr"
	case "PLN":
		return "zł"
	default:
		return "$"
	}
}

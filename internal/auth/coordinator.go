package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/browser"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/vinothpandian/inkdash/internal/config"
	"github.com/vinothpandian/inkdash/internal/logger"
)

const (
	// CallbackAddr is the fixed loopback address the OAuth redirect lands on.
	// It must match the redirect URI registered for the OAuth client.
	CallbackAddr = "127.0.0.1:8847"

	// RedirectURI is the registered redirect target for the loopback flow.
	RedirectURI = "http://localhost:8847/oauth/callback"

	// ScopeCalendarReadonly is the only scope the dashboard requests.
	ScopeCalendarReadonly = "https://www.googleapis.com/auth/calendar.readonly"

	// callbackTimeout bounds how long AwaitCallback blocks for the redirect.
	callbackTimeout = 300 * time.Second

	// expiryMargin is how close to expiry a cached access token may get
	// before it is refreshed pre-emptively. Absorbs network latency of
	// downstream calls so a token is never presented already expired.
	expiryMargin = 5 * time.Minute
)

// flowState tracks where the current authorization flow is. Failures at
// awaiting-callback or exchanging return to idle; authenticated is not
// terminal, a near-expiry token moves back through a refresh.
type flowState int

const (
	stateIdle flowState = iota
	stateAwaitingCallback
	stateExchanging
	stateAuthenticated
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Coordinator orchestrates the Google OAuth authorization-code flow and owns
// the "valid token" decision. It holds no token state of its own; credentials
// are read and written as whole records through the injected store.
type Coordinator struct {
	store        config.Store
	httpClient   *http.Client
	authURL      string
	tokenURL     string
	callbackAddr string
	redirectURI  string
	timeout      time.Duration
	openBrowser  func(url string) error

	mu       sync.Mutex // guards state and listener
	state    flowState
	listener *CallbackListener

	refreshMu sync.Mutex // single-flight refresh
}

// NewCoordinator creates a coordinator persisting credentials through store.
func NewCoordinator(store config.Store) *Coordinator {
	return &Coordinator{
		store:        store,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		authURL:      google.Endpoint.AuthURL,
		tokenURL:     google.Endpoint.TokenURL,
		callbackAddr: CallbackAddr,
		redirectURI:  RedirectURI,
		timeout:      callbackTimeout,
		openBrowser:  browser.OpenURL,
	}
}

// StartFlow validates the configured client credentials, binds the callback
// listener for this flow attempt, builds the provider authorization URL and
// opens it in the user's default browser. The URL is returned so the caller
// can present it if the browser could not be opened.
func (c *Coordinator) StartFlow() (string, error) {
	cfg, err := c.store.Load()
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.GoogleCalendar.ClientID == "" {
		return "", &ConfigError{Field: "client_id"}
	}
	if cfg.GoogleCalendar.ClientSecret == "" {
		return "", &ConfigError{Field: "client_secret"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// A listener left over from an abandoned attempt would hold the port;
	// tear it down before binding a fresh one.
	if c.listener != nil {
		if closeErr := c.listener.Close(); closeErr != nil {
			logger.Warn("failed to close stale callback listener", "error", closeErr)
		}
		c.listener = nil
	}

	listener, err := NewCallbackListener(c.callbackAddr)
	if err != nil {
		c.state = stateIdle
		return "", err
	}
	c.listener = listener

	oc := &oauth2.Config{
		ClientID:     cfg.GoogleCalendar.ClientID,
		ClientSecret: cfg.GoogleCalendar.ClientSecret,
		Endpoint:     oauth2.Endpoint{AuthURL: c.authURL, TokenURL: c.tokenURL},
		RedirectURL:  c.redirectURI,
		Scopes:       []string{ScopeCalendarReadonly},
	}
	// prompt=consent forces refresh-token issuance on every re-auth
	authorizeURL := oc.AuthCodeURL("", oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	if err := c.openBrowser(authorizeURL); err != nil {
		// The URL is still valid; the caller surfaces it for manual use
		logger.Warn("failed to open browser", "error", err)
	}

	c.state = stateAwaitingCallback
	logger.Info("authorization flow started", "redirect_uri", c.redirectURI)

	return authorizeURL, nil
}

// AwaitCallback blocks until the listener delivers the redirect outcome or
// the flow timeout elapses. On timeout the listener is shut down so the port
// is released for the next attempt.
func (c *Coordinator) AwaitCallback(ctx context.Context) (string, error) {
	c.mu.Lock()
	listener := c.listener
	if c.state != stateAwaitingCallback || listener == nil {
		c.mu.Unlock()
		return "", fmt.Errorf("no authorization flow in progress")
	}
	c.mu.Unlock()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	var res CallbackResult
	select {
	case res = <-listener.Result():
	case <-timer.C:
		c.abortFlow(listener)
		return "", ErrCallbackTimeout
	case <-ctx.Done():
		c.abortFlow(listener)
		return "", ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = nil

	if res.Err != nil {
		c.state = stateIdle
		return "", res.Err
	}

	c.state = stateExchanging
	logger.Debug("authorization code received")
	return res.Code, nil
}

func (c *Coordinator) abortFlow(listener *CallbackListener) {
	if err := listener.Close(); err != nil {
		logger.Warn("failed to close callback listener", "error", err)
	}
	c.mu.Lock()
	c.listener = nil
	c.state = stateIdle
	c.mu.Unlock()
}

// ExchangeCode exchanges the authorization code for tokens and persists them.
// The stored refresh token is only overwritten when the response carries one;
// providers are not required to resend it on every exchange.
func (c *Coordinator) ExchangeCode(ctx context.Context, code string) error {
	cfg, err := c.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	params := url.Values{
		"client_id":     {cfg.GoogleCalendar.ClientID},
		"client_secret": {cfg.GoogleCalendar.ClientSecret},
		"code":          {code},
		"redirect_uri":  {c.redirectURI},
		"grant_type":    {"authorization_code"},
	}

	tok, err := c.requestToken(ctx, "exchange", params)
	if err != nil {
		c.setState(stateIdle)
		return err
	}

	cfg.GoogleCalendar.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		cfg.GoogleCalendar.RefreshToken = tok.RefreshToken
	}
	cfg.GoogleCalendar.TokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second).Format(time.RFC3339)

	if err := c.store.Save(cfg); err != nil {
		c.setState(stateIdle)
		return fmt.Errorf("failed to save tokens: %w", err)
	}

	c.setState(stateAuthenticated)
	logger.Info("token exchange succeeded", "has_refresh_token", tok.RefreshToken != "", "expires_in", tok.ExpiresIn)
	return nil
}

// GetValidAccessToken returns a currently usable access token, refreshing
// synchronously when the stored one expires within the safety margin. An
// empty or unparsable stored expiry is treated as immediately stale.
func (c *Coordinator) GetValidAccessToken(ctx context.Context) (string, error) {
	cfg, err := c.store.Load()
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.GoogleCalendar.AccessToken == "" {
		return "", ErrNotAuthenticated
	}

	if cfg.GoogleCalendar.TokenExpiry != "" {
		expiry, parseErr := time.Parse(time.RFC3339, cfg.GoogleCalendar.TokenExpiry)
		if parseErr == nil && expiry.After(time.Now().Add(expiryMargin)) {
			return cfg.GoogleCalendar.AccessToken, nil
		}
	}

	logger.Debug("access token stale or near expiry, refreshing")
	return c.Refresh(ctx)
}

// Refresh obtains a new access token with the stored refresh token and
// persists it. Refresh responses typically omit a new refresh token; the
// existing one is kept in that case. Serialized so two downstream calls
// racing on a stale token trigger only one request.
func (c *Coordinator) Refresh(ctx context.Context) (string, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	cfg, err := c.store.Load()
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.GoogleCalendar.RefreshToken == "" {
		return "", ErrNoRefreshToken
	}

	params := url.Values{
		"client_id":     {cfg.GoogleCalendar.ClientID},
		"client_secret": {cfg.GoogleCalendar.ClientSecret},
		"refresh_token": {cfg.GoogleCalendar.RefreshToken},
		"grant_type":    {"refresh_token"},
	}

	tok, err := c.requestToken(ctx, "refresh", params)
	if err != nil {
		return "", err
	}

	cfg.GoogleCalendar.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		cfg.GoogleCalendar.RefreshToken = tok.RefreshToken
	}
	cfg.GoogleCalendar.TokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second).Format(time.RFC3339)

	if err := c.store.Save(cfg); err != nil {
		return "", fmt.Errorf("failed to save refreshed token: %w", err)
	}

	c.setState(stateAuthenticated)
	logger.Info("access token refreshed", "new_expiry", cfg.GoogleCalendar.TokenExpiry)
	return tok.AccessToken, nil
}

// requestToken posts a form-encoded grant to the token endpoint and decodes
// the response, surfacing non-success statuses verbatim.
func (c *Coordinator) requestToken(ctx context.Context, op string, params url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token %s request failed: %w", op, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &TokenRequestError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", op, err)
	}

	if tok.AccessToken == "" || tok.ExpiresIn <= 0 {
		return nil, fmt.Errorf("invalid %s response: missing required fields", op)
	}

	return &tok, nil
}

func (c *Coordinator) setState(s flowState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

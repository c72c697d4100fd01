// Package msauth is the Microsoft identity provider adapter. It implements
// the OAuth2 device authorization grant (the flow a keyboard-less clock
// needs: the user enters a short code in a browser while the backend polls)
// and silent token refresh, and translates authority failures into the
// session error taxonomy.
package msauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openclock/clockd/pkg/session"
)

const (
	// defaultAuthority is the multi-tenant Microsoft login endpoint.
	defaultAuthority = "https://login.microsoftonline.com/common"

	// defaultTimeout bounds each request against the authority.
	defaultTimeout = 30 * time.Second

	// deviceCodeGrant is the grant type for device-flow token redemption.
	deviceCodeGrant = "urn:ietf:params:oauth:grant-type:device_code"
)

// ErrAuthorizationPending is returned by Redeem while the user has not yet
// approved the device code. The poll loop keeps waiting on it.
var ErrAuthorizationPending = errors.New("authorization pending")

// Config configures the Client.
type Config struct {
	// ClientID is the application (client) ID registered in Azure.
	ClientID string

	// Authority is the login endpoint base URL. Defaults to the common
	// multi-tenant endpoint; tests point it at a local server.
	Authority string

	// Scopes are the delegated permissions to request.
	Scopes []string

	// Timeout bounds each request. Defaults to 30s.
	Timeout time.Duration

	// Logger receives flow diagnostics. Defaults to slog.Default.
	Logger *slog.Logger
}

// Client talks to the Microsoft identity platform.
type Client struct {
	clientID   string
	authority  string
	scopes     []string
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a Client. ClientID is required.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("msauth: client id is required")
	}
	if cfg.Authority == "" {
		cfg.Authority = defaultAuthority
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		clientID:   cfg.ClientID,
		authority:  strings.TrimSuffix(cfg.Authority, "/"),
		scopes:     cfg.Scopes,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log.With("component", "msauth"),
	}, nil
}

// DeviceFlow is a started device authorization grant awaiting user action.
type DeviceFlow struct {
	// ID correlates poll requests with this flow in logs.
	ID string `json:"id"`

	DeviceCode      string        `json:"-"`
	UserCode        string        `json:"user_code"`
	VerificationURI string        `json:"verification_uri"`
	Message         string        `json:"message"`
	ExpiresAt       time.Time     `json:"expires_at"`
	Interval        time.Duration `json:"-"`
}

// deviceCodeResponse is the authority's devicecode payload.
type deviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
	Message         string `json:"message"`
}

// tokenResponse is the authority's token payload.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// oauthError is the authority's error payload.
type oauthError struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

// Error implements the error interface.
func (e *oauthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	}
	return e.Code
}

// StartDeviceFlow requests a device code from the authority.
func (c *Client) StartDeviceFlow(ctx context.Context) (*DeviceFlow, error) {
	form := url.Values{
		"client_id": {c.clientID},
		"scope":     {strings.Join(c.scopes, " ")},
	}

	var resp deviceCodeResponse
	if err := c.post(ctx, "/oauth2/v2.0/devicecode", form, &resp); err != nil {
		return nil, fmt.Errorf("starting device flow: %w", err)
	}
	if resp.UserCode == "" {
		return nil, fmt.Errorf("device flow response carried no user code")
	}

	interval := time.Duration(resp.Interval) * time.Second
	if interval == 0 {
		interval = 5 * time.Second
	}

	flow := &DeviceFlow{
		ID:              uuid.NewString(),
		DeviceCode:      resp.DeviceCode,
		UserCode:        resp.UserCode,
		VerificationURI: resp.VerificationURI,
		Message:         resp.Message,
		ExpiresAt:       time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
		Interval:        interval,
	}
	c.log.Info("device flow started", "flow_id", flow.ID, "user_code", flow.UserCode)
	return flow, nil
}

// Redeem attempts to exchange the device code for a token once. While the
// user has not acted yet it returns ErrAuthorizationPending.
func (c *Client) Redeem(ctx context.Context, flow *DeviceFlow) (*Token, error) {
	form := url.Values{
		"grant_type":  {deviceCodeGrant},
		"client_id":   {c.clientID},
		"device_code": {flow.DeviceCode},
	}

	var resp tokenResponse
	if err := c.post(ctx, "/oauth2/v2.0/token", form, &resp); err != nil {
		return nil, err
	}
	return c.tokenFromResponse(resp), nil
}

// WaitForCompletion polls the authority until the user approves the flow,
// the flow expires, or ctx is cancelled.
func (c *Client) WaitForCompletion(ctx context.Context, flow *DeviceFlow) (*Token, error) {
	ticker := time.NewTicker(flow.Interval)
	defer ticker.Stop()

	for {
		tok, err := c.Redeem(ctx, flow)
		switch {
		case err == nil:
			c.log.Info("device flow completed", "flow_id", flow.ID, "account", tok.Account)
			return tok, nil
		case errors.Is(err, ErrAuthorizationPending):
			// Keep waiting.
		default:
			return nil, err
		}

		if time.Now().After(flow.ExpiresAt) {
			return nil, fmt.Errorf("device flow %s expired before approval", flow.ID)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Refresh exchanges a refresh token for a fresh access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	if refreshToken == "" {
		return nil, session.ErrNotConfigured
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.clientID},
		"refresh_token": {refreshToken},
		"scope":         {strings.Join(c.scopes, " ")},
	}

	var resp tokenResponse
	if err := c.post(ctx, "/oauth2/v2.0/token", form, &resp); err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}

	tok := c.tokenFromResponse(resp)
	if tok.RefreshToken == "" {
		// The authority may not rotate the refresh token; keep the old one.
		tok.RefreshToken = refreshToken
	}
	return tok, nil
}

// tokenFromResponse builds a Token and backfills missing metadata from the
// access token's claims.
func (c *Client) tokenFromResponse(resp tokenResponse) *Token {
	tok := &Token{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}
	if resp.ExpiresIn > 0 {
		tok.ExpiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	tok.enrichFromClaims()
	return tok
}

// post sends a form-encoded request to the authority and decodes the JSON
// response, translating OAuth error codes into the session taxonomy.
func (c *Client) post(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.authority+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var oerr oauthError
		if jerr := json.Unmarshal(body, &oerr); jerr == nil && oerr.Code != "" {
			return classifyOAuth(&oerr)
		}
		return fmt.Errorf("authority returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// classifyOAuth maps OAuth error codes onto the session taxonomy.
func classifyOAuth(oerr *oauthError) error {
	switch oerr.Code {
	case "authorization_pending", "slow_down":
		return fmt.Errorf("%w: %s", ErrAuthorizationPending, oerr.Code)
	case "invalid_grant", "authorization_declined", "expired_token", "interaction_required":
		return fmt.Errorf("%w: %v", session.ErrInvalidCredentials, oerr)
	default:
		return oerr
	}
}

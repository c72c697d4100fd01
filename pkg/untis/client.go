// Package untis is the WebUntis timetable provider adapter. It speaks the
// JSON-RPC dialect of the WebUntis public API and translates provider
// failures into the session error taxonomy.
package untis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/openclock/clockd/pkg/session"
)

const (
	// defaultTimeout bounds each JSON-RPC round trip.
	defaultTimeout = 30 * time.Second

	// rpcPath is the JSON-RPC endpoint below the WebUntis server root.
	rpcPath = "/WebUntis/jsonrpc.do"
)

// WebUntis JSON-RPC error codes the adapter interprets.
const (
	codeBadCredentials   = -8504
	codeNotAuthenticated = -8520
	codeNoRight          = -8509
)

// Config configures the Client.
type Config struct {
	// Timeout bounds each request. Defaults to 30s.
	Timeout time.Duration

	// Insecure switches to plain HTTP. Only used by tests.
	Insecure bool

	// Logger receives request-level diagnostics. Defaults to slog.Default.
	Logger *slog.Logger
}

// Client issues WebUntis JSON-RPC calls. It is stateless; per-account state
// lives in the Session a successful Login returns.
type Client struct {
	httpClient *http.Client
	scheme     string
	log        *slog.Logger
}

// NewClient creates a WebUntis client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	scheme := "https"
	if cfg.Insecure {
		scheme = "http"
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		scheme:     scheme,
		log:        log.With("component", "untis"),
	}
}

// Session is an authenticated WebUntis connection. It is owned by a
// session.Manager and must not be shared outside it.
type Session struct {
	client     *Client
	endpoint   string
	cookie     string
	personID   int
	personType int
}

// RemoteError is a WebUntis JSON-RPC level failure.
type RemoteError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("webuntis error %d: %s", e.Code, e.Message)
}

// rpcRequest is the JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	JSONRPC string `json:"jsonrpc"`
}

// rpcResponse is the JSON-RPC 2.0 response envelope.
type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RemoteError    `json:"error"`
}

// authResult is the payload of a successful authenticate call.
type authResult struct {
	SessionID  string `json:"sessionId"`
	PersonType int    `json:"personType"`
	PersonID   int    `json:"personId"`
}

// period is one timetable entry in wire format.
type period struct {
	Date      int       `json:"date"`
	StartTime int       `json:"startTime"`
	EndTime   int       `json:"endTime"`
	Subjects  []element `json:"su"`
	Rooms     []element `json:"ro"`
	Classes   []element `json:"kl"`
}

// element is a named timetable resource (subject, room, class).
type element struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// wireHoliday is one holiday entry in wire format.
type wireHoliday struct {
	Name      string `json:"name"`
	LongName  string `json:"longName"`
	StartDate int    `json:"startDate"`
	EndDate   int    `json:"endDate"`
}

// Login authenticates against the school's WebUntis server and returns a
// live session. Credential rejections surface as
// session.ErrInvalidCredentials; everything else is transient.
func (c *Client) Login(ctx context.Context, creds Credentials) (*Session, error) {
	endpoint := fmt.Sprintf("%s://%s%s?school=%s",
		c.scheme, creds.Server, rpcPath, url.QueryEscape(creds.School))

	params := map[string]string{
		"user":     creds.Username,
		"password": creds.Password,
		"client":   creds.UserAgent,
	}

	var result authResult
	cookie, err := c.call(ctx, endpoint, "", "authenticate", params, &result)
	if err != nil {
		return nil, err
	}
	if result.SessionID == "" {
		return nil, fmt.Errorf("authenticate returned no session id")
	}
	// Prefer the cookie the server set; fall back to the session id from
	// the result payload.
	if cookie == "" {
		cookie = "JSESSIONID=" + result.SessionID
	}

	c.log.Info("authenticated", "credentials", creds)

	return &Session{
		client:     c,
		endpoint:   endpoint,
		cookie:     cookie,
		personID:   result.PersonID,
		personType: result.PersonType,
	}, nil
}

// Timetable fetches the account's own timetable between start and end,
// inclusive. Entries come back in provider order; the caller sorts.
func (s *Session) Timetable(ctx context.Context, start, end time.Time) ([]Lesson, error) {
	params := map[string]any{
		"id":        s.personID,
		"type":      s.personType,
		"startDate": asUntisDate(start),
		"endDate":   asUntisDate(end),
	}

	var periods []period
	if _, err := s.client.call(ctx, s.endpoint, s.cookie, "getTimetable", params, &periods); err != nil {
		return nil, err
	}

	lessons := make([]Lesson, 0, len(periods))
	for _, p := range periods {
		lessons = append(lessons, Lesson{
			Subject: firstName(p.Subjects),
			Start:   untisDateTime(p.Date, p.StartTime),
			End:     untisDateTime(p.Date, p.EndTime),
			Room:    firstName(p.Rooms),
			Classes: names(p.Classes),
		})
	}
	return lessons, nil
}

// Holidays fetches the school's holiday calendar.
func (s *Session) Holidays(ctx context.Context) ([]Holiday, error) {
	var wire []wireHoliday
	if _, err := s.client.call(ctx, s.endpoint, s.cookie, "getHolidays", map[string]any{}, &wire); err != nil {
		return nil, err
	}

	holidays := make([]Holiday, 0, len(wire))
	for _, h := range wire {
		name := h.LongName
		if name == "" {
			name = h.Name
		}
		holidays = append(holidays, Holiday{
			Name:  name,
			Start: untisDate(h.StartDate),
			End:   untisDate(h.EndDate),
		})
	}
	return holidays, nil
}

// Logout terminates the provider-side session.
func (s *Session) Logout(ctx context.Context) error {
	_, err := s.client.call(ctx, s.endpoint, s.cookie, "logout", map[string]any{}, nil)
	return err
}

// call performs one JSON-RPC round trip. It returns the session cookie the
// server set, if any, and decodes the result into out when non-nil.
func (c *Client) call(ctx context.Context, endpoint, cookie, method string, params, out any) (string, error) {
	body, err := json.Marshal(rpcRequest{
		ID:      uuid.NewString(),
		Method:  method,
		Params:  params,
		JSONRPC: "2.0",
	})
	if err != nil {
		return "", fmt.Errorf("encoding %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("%s: unexpected status %d", method, resp.StatusCode)
	}

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", fmt.Errorf("decoding %s response: %w", method, err)
	}
	if envelope.Error != nil {
		return "", classifyRemote(envelope.Error)
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return "", fmt.Errorf("decoding %s result: %w", method, err)
		}
	}

	var sessionCookie string
	for _, ck := range resp.Cookies() {
		if ck.Name == "JSESSIONID" {
			sessionCookie = ck.Name + "=" + ck.Value
		}
	}
	return sessionCookie, nil
}

// classifyRemote maps WebUntis error codes onto the session taxonomy.
func classifyRemote(re *RemoteError) error {
	switch re.Code {
	case codeBadCredentials:
		return fmt.Errorf("%w: %s", session.ErrInvalidCredentials, re.Message)
	case codeNotAuthenticated:
		// The server dropped the session; a re-login is required.
		return fmt.Errorf("%w: %s", session.ErrInvalidCredentials, re.Message)
	default:
		return re
	}
}

// firstName returns the name of the first element, or "".
func firstName(els []element) string {
	if len(els) == 0 {
		return ""
	}
	return els[0].Name
}

// names collects all element names.
func names(els []element) []string {
	if len(els) == 0 {
		return nil
	}
	out := make([]string, len(els))
	for i, el := range els {
		out[i] = el.Name
	}
	return out
}

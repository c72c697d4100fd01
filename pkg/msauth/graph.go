package msauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openclock/clockd/pkg/session"
)

// defaultGraphEndpoint is the Microsoft Graph v1.0 base URL.
const defaultGraphEndpoint = "https://graph.microsoft.com/v1.0"

// Message is one mailbox message as shown on the clock face.
type Message struct {
	Subject  string `json:"subject"`
	From     string `json:"from_email"`
	Received string `json:"received_date"`
	Body     string `json:"body,omitempty"`
}

// GraphConfig configures the Graph client.
type GraphConfig struct {
	// Endpoint overrides the Graph base URL. Defaults to the v1.0 endpoint.
	Endpoint string

	// Timeout bounds each request. Defaults to 30s.
	Timeout time.Duration

	// Logger receives request diagnostics. Defaults to slog.Default.
	Logger *slog.Logger
}

// Graph reads mailbox data from Microsoft Graph with a bearer token.
type Graph struct {
	endpoint   string
	httpClient *http.Client
	log        *slog.Logger
}

// NewGraph creates a Graph client.
func NewGraph(cfg GraphConfig) *Graph {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultGraphEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Graph{
		endpoint:   strings.TrimSuffix(cfg.Endpoint, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log.With("component", "graph"),
	}
}

// graphMessage is the wire shape of one Graph message.
type graphMessage struct {
	Subject string `json:"subject"`
	From    struct {
		EmailAddress struct {
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"from"`
	ReceivedDateTime string `json:"receivedDateTime"`
	Body             struct {
		Content string `json:"content"`
	} `json:"body"`
}

// Messages lists the account's mailbox messages. A 401 from Graph means
// the access token is no longer good and surfaces as invalid credentials
// so the session manager drops the handle.
func (g *Graph) Messages(ctx context.Context, accessToken string) ([]Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"/me/messages", nil)
	if err != nil {
		return nil, fmt.Errorf("building messages request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching messages: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: graph rejected token", session.ErrInvalidCredentials)
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("graph returned status %d", resp.StatusCode)
	}

	var payload struct {
		Value []graphMessage `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding messages: %w", err)
	}

	messages := make([]Message, 0, len(payload.Value))
	for _, m := range payload.Value {
		messages = append(messages, Message{
			Subject:  m.Subject,
			From:     m.From.EmailAddress.Address,
			Received: m.ReceivedDateTime,
			Body:     m.Body.Content,
		})
	}
	return messages, nil
}

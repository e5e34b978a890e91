// Package chatkit brokers short-lived widget sessions against the OpenAI
// ChatKit sessions API.
package chatkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the upstream sessions API root.
const DefaultBaseURL = "https://api.openai.com/v1"

// defaultTimeout bounds one session-creation call. The inbound request's
// context can cancel earlier.
const defaultTimeout = 10 * time.Second

// ErrMalformedResponse means the upstream returned 2xx but no usable
// client secret.
var ErrMalformedResponse = errors.New("chatkit session response missing client_secret")

// SessionError carries the upstream failure detail for server-side logs.
// It is never echoed to the public caller.
type SessionError struct {
	Status int
	Body   string
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("chatkit session creation failed: status %d", e.Status)
}

// Session is the credential handed back to the browser widget.
type Session struct {
	ClientSecret string `json:"client_secret"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
}

// Client calls the upstream ChatKit sessions endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client against the production API.
func NewClient() *Client {
	return NewClientWith(DefaultBaseURL, nil)
}

// NewClientWith creates a client with a custom base URL and http.Client,
// used by tests to capture outbound requests.
func NewClientWith(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type sessionRequest struct {
	Workflow struct {
		ID string `json:"id"`
	} `json:"workflow"`
	User          string          `json:"user"`
	Configuration json.RawMessage `json:"chatkit_configuration,omitempty"`
}

// CreateSession mints one upstream session for a resolved workflow. config
// is an optional serialized widget-configuration document. The call is
// side-effecting only upstream; non-2xx responses surface as *SessionError
// with the status and body preserved for logging.
func (c *Client) CreateSession(ctx context.Context, apiKey, workflowID, user string, config json.RawMessage) (*Session, error) {
	payload := sessionRequest{User: user, Configuration: config}
	payload.Workflow.ID = workflowID

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chatkit/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build session request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OpenAI-Beta", "chatkit_beta=v1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chatkit session request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read session response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &SessionError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var session Session
	if err := json.Unmarshal(respBody, &session); err != nil || session.ClientSecret == "" {
		return nil, ErrMalformedResponse
	}
	return &session, nil
}

package backend

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

	"github.com/carebridge/telemed-sync/internal/appointments"
	"github.com/carebridge/telemed-sync/pkg/logging"
)

const defaultUserAgent = "telemed-sync/0.1"

// TokenSource supplies the bearer credential attached to backend requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Config controls how the backend client behaves.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
	UserAgent  string
	Tokens     TokenSource
}

// Client is the HTTP transport for the appointments backend. It speaks the
// canonical response envelope ({success, data}) and classifies every
// failure into the subsystem's error taxonomy.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
	userAgent  string
	tokens     TokenSource
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("backend: base URL is required")
	}
	baseURL = strings.TrimRight(baseURL, "/")
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		userAgent:  userAgent,
		tokens:     cfg.Tokens,
	}, nil
}

// envelope is the canonical backend response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Count   int             `json:"count"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// ListAppointments fetches the full appointment list.
func (c *Client) ListAppointments(ctx context.Context) ([]appointments.Appointment, error) {
	data, err := c.invoke(ctx, http.MethodGet, c.baseURL+"/appointments", nil)
	if err != nil {
		return nil, err
	}
	env, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	var appts []appointments.Appointment
	if err := json.Unmarshal(env.Data, &appts); err != nil {
		return nil, &Error{Class: ClassEndpoint, Detail: "list payload is not an appointment array", Err: err}
	}
	return appts, nil
}

// Ping probes backend reachability. The connectivity monitor uses it to
// derive online/offline transitions.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.invoke(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil && IsNetwork(err) {
		return err
	}
	// Any response at all, even an error status, proves the network path.
	return nil
}

// attempt issues one status mutation against a single candidate shape and
// decodes the acknowledged appointment.
func (c *Client) attempt(ctx context.Context, ep CandidateEndpoint, id string, status appointments.Status) (*appointments.Appointment, error) {
	body, err := json.Marshal(ep.payload(id, status))
	if err != nil {
		return nil, fmt.Errorf("backend: marshal status body: %w", err)
	}
	data, err := c.invoke(ctx, ep.Method, ep.buildURL(c.baseURL, id), body)
	if err != nil {
		return nil, err
	}
	env, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	var appt appointments.Appointment
	if err := json.Unmarshal(env.Data, &appt); err != nil || appt.ID == "" {
		return nil, &Error{Class: ClassEndpoint, Detail: "response payload does not look like an appointment", Err: err}
	}
	return &appt, nil
}

func (c *Client) invoke(ctx context.Context, method, fullURL string, body []byte) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, &Error{Class: ClassAuth, Detail: "no usable credential", Err: err}
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &Error{Class: ClassNetwork, Detail: "request canceled or timed out", Err: ctx.Err()}
		}
		return nil, &Error{Class: ClassNetwork, Err: err}
	}
	data, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return nil, &Error{Class: ClassNetwork, Detail: "read response", Err: readErr}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}
	return nil, &Error{
		Class:      classifyStatus(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Detail:     errorDetail(data),
	}
}

func decodeEnvelope(data []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &Error{Class: ClassEndpoint, Detail: "response is not the expected envelope", Err: err}
	}
	if !env.Success {
		return nil, &Error{Class: ClassEndpoint, Detail: "backend reported failure"}
	}
	return &env, nil
}

func errorDetail(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	const maxDetail = 200
	s := strings.TrimSpace(string(body))
	if len(s) > maxDetail {
		s = s[:maxDetail]
	}
	return s
}

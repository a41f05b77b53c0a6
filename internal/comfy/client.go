package comfy

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

	"canvasbridge/internal/logging"
)

// Client submits trigger payloads to the pipeline host's /prompt endpoint.
// The payload itself is an opaque graph description owned by the frontend;
// the client only attaches its own client_id so host-side events can be
// correlated with this bridge.
type Client struct {
	baseURL    string
	clientID   string
	httpClient *http.Client
	logger     *slog.Logger
}

// SubmitResult carries the proxied response from the pipeline host.
type SubmitResult struct {
	StatusCode  int
	Body        []byte
	ContentType string
}

// OK reports whether the host accepted the submission.
func (r *SubmitResult) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// NewClient constructs a pipeline host client with a fresh client id.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		clientID:   uuid.New().String(),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(logging.String("component", "comfy-client")),
	}
}

// ClientID returns the unique id attached to submissions.
func (c *Client) ClientID() string {
	return c.clientID
}

// BaseURL returns the pipeline host base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SubmitPrompt posts a trigger payload to {host}/prompt and returns the
// host's response verbatim. Transport failures are returned as errors;
// non-2xx responses are not, so callers can relay the host's own status.
func (c *Client) SubmitPrompt(ctx context.Context, payload map[string]any) (*SubmitResult, error) {
	if payload == nil {
		return nil, fmt.Errorf("comfy: nil prompt payload")
	}
	if _, ok := payload["client_id"]; !ok {
		withID := make(map[string]any, len(payload)+1)
		for k, v := range payload {
			withID[k] = v
		}
		withID["client_id"] = c.clientID
		payload = withID
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("comfy: encode prompt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prompt", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("comfy: build prompt request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("comfy: submit prompt: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("comfy: read prompt response: %w", err)
	}

	return &SubmitResult{
		StatusCode:  resp.StatusCode,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// PromptID extracts the prompt id from a successful submission response.
func (r *SubmitResult) PromptID() string {
	if r == nil {
		return ""
	}
	var decoded struct {
		PromptID string `json:"prompt_id"`
	}
	if err := json.Unmarshal(r.Body, &decoded); err != nil {
		return ""
	}
	return decoded.PromptID
}

// websocketURL derives the host's event socket address for this client id.
func (c *Client) websocketURL() (string, error) {
	parsed, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("comfy: parse base url: %w", err)
	}
	scheme := "ws"
	if parsed.Scheme == "https" {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/ws?clientId=%s", scheme, parsed.Host, c.clientID), nil
}

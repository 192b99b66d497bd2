package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shakti-ai/shakti/internal/log"
)

// Poster posts a payload to a hosted inference model and returns the raw
// response body. Defined here so the gateway can be tested without HTTP.
type Poster interface {
	Post(ctx context.Context, model string, payload any) (json.RawMessage, error)
}

// maxResponseBytes bounds inference responses. Translations are at most a
// few KB; anything larger indicates a misbehaving endpoint.
const maxResponseBytes = 1 << 20

// Client posts translation requests to a hosted inference API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     log.Logger
}

// NewClient creates an inference API client. The per-attempt timeout is
// enforced by the caller through context, so the underlying http.Client
// carries no timeout of its own.
func NewClient(baseURL, apiKey string, logger log.Logger) *Client {
	return &Client{
		httpClient: &http.Client{},
		baseURL:    baseURL,
		apiKey:     apiKey,
		logger:     logger,
	}
}

// Post implements Poster against the inference API's model endpoint.
func (c *Client) Post(ctx context.Context, model string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding inference request: %w", err)
	}

	url := c.baseURL + "/models/" + model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting to %s: %w", model, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("failed to close inference response body", "error", cerr)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading inference response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("inference API returned %d for %s: %s",
			resp.StatusCode, model, truncate(string(raw), 200))
	}

	return json.RawMessage(raw), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

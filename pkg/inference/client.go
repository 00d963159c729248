// Package inference provides a streaming client for OpenAI-compatible
// chat-completions endpoints (vLLM and friends).
//
// Requests are issued with stream: true; the chunked response is
// accumulated into final content and reasoning buffers by Accumulate.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/evalforge/modelrun/pkg/prompt"
)

// Config configures an inference client.
type Config struct {
	// BaseURL is the endpoint base address including the API version
	// path, e.g. "http://localhost:8000/v1".
	BaseURL string

	// Model is the model name passed through to the endpoint.
	Model string

	// Temperature is the sampling temperature, passed verbatim.
	Temperature float64

	// Timeout bounds one complete request including stream
	// consumption. Default: 300s.
	Timeout time.Duration

	// APIKey is sent as a bearer token when non-empty. vLLM
	// deployments usually run without one.
	APIKey string

	// HTTPClient overrides the underlying client. The default has no
	// client-level timeout; Timeout governs via context.
	HTTPClient *http.Client
}

// Client issues streaming chat-completions requests.
//
// The client is safe for concurrent use; each call is independent and
// the underlying connection pool is shared.
type Client struct {
	baseURL     string
	model       string
	temperature float64
	timeout     time.Duration
	apiKey      string
	httpClient  *http.Client
}

// NewClient creates a client, applying defaults for zero values.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 300 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	return &Client{
		baseURL:     strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		apiKey:      strings.TrimSpace(cfg.APIKey),
		httpClient:  cfg.HTTPClient,
	}
}

type completionRequest struct {
	Model       string           `json:"model"`
	Messages    []prompt.Message `json:"messages"`
	Temperature float64          `json:"temperature"`
	Stream      bool             `json:"stream"`
}

// Complete sends messages to the endpoint and accumulates the streamed
// response.
//
// onDecodeError is invoked for each stream line that fails to decode;
// it may be nil. Transport failures, non-2xx statuses, and timeouts
// return an error with no completion.
func (c *Client) Complete(ctx context.Context, messages []prompt.Message, onDecodeError func(line string, err error)) (Completion, error) {
	payload := completionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		Stream:      true,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return Completion{}, fmt.Errorf("marshal completion payload: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpRequest, err := http.NewRequestWithContext(
		timeoutCtx,
		http.MethodPost,
		c.baseURL+"/chat/completions",
		bytes.NewReader(encoded),
	)
	if err != nil {
		return Completion{}, fmt.Errorf("create completion request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		httpRequest.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return Completion{}, fmt.Errorf("completion transport error: %w", err)
	}
	defer httpResponse.Body.Close()

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(httpResponse.Body, 700))
		return Completion{}, &HTTPError{
			StatusCode: httpResponse.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	completion, err := Accumulate(httpResponse.Body, onDecodeError)
	if err != nil {
		return Completion{}, fmt.Errorf("read completion stream: %w", err)
	}
	return completion, nil
}

// HTTPError reports a non-2xx endpoint response.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("inference endpoint status %d: %s", e.StatusCode, e.Message)
}

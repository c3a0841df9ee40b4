// Package kontext wraps the Black Forest Labs flux-kontext image
// transformation API: submit a prompt plus source image, then poll the
// request id until a terminal status comes back.
package kontext

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("kontext: api key is required")

// Status is the normalized state of a transformation request.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusReady     Status = "Ready"
	StatusModerated Status = "Moderated"
	StatusError     Status = "Error"
)

// PollResult is the normalized outcome of one status check.
type PollResult struct {
	Status Status
	// Sample is the result image reference, set when Status is StatusReady.
	Sample string
	// Detail carries the provider's raw status or error text for
	// moderated and failed requests.
	Detail string
}

// Options configures the flux-kontext client.
type Options struct {
	APIKey         string
	BaseURL        string
	Steps          int
	Guidance       float64
	OutputFormat   string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the BFL API.
type Client struct {
	apiKey       string
	baseURL      string
	steps        int
	guidance     float64
	outputFormat string
	httpClient   *http.Client
	logger       *infra.Logger
}

type submitRequest struct {
	Prompt       string  `json:"prompt"`
	InputImage   string  `json:"input_image"`
	Steps        int     `json:"steps"`
	Guidance     float64 `json:"guidance"`
	OutputFormat string  `json:"output_format"`
}

type submitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

type pollResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Result struct {
		Sample string `json:"sample"`
	} `json:"result"`
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.us1.bfl.ai"
	}
	steps := opts.Steps
	if steps <= 0 {
		steps = 50
	}
	guidance := opts.Guidance
	if guidance <= 0 {
		guidance = 3.0
	}
	outputFormat := strings.TrimSpace(opts.OutputFormat)
	if outputFormat == "" {
		outputFormat = "jpeg"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		steps:        steps,
		guidance:     guidance,
		outputFormat: outputFormat,
		httpClient:   httpClient,
		logger:       logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Submit sends one transformation request and returns the provider-assigned
// request id. A response without an id is a hard failure.
func (c *Client) Submit(ctx context.Context, image []byte, prompt string) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("kontext: prompt is required")
	}
	if len(image) == 0 {
		return "", errors.New("kontext: image is required")
	}
	payload := submitRequest{
		Prompt:       prompt,
		InputImage:   base64.StdEncoding.EncodeToString(image),
		Steps:        c.steps,
		Guidance:     c.guidance,
		OutputFormat: c.outputFormat,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("kontext: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/flux-kontext-pro", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("kontext: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("accept", "application/json")
	req.Header.Set("x-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("kontext: submit failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("kontext: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("kontext: submit status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out submitResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("kontext: decode response: %w", err)
	}
	if strings.TrimSpace(out.ID) == "" {
		return "", errors.New("kontext: response missing request id")
	}
	return out.ID, nil
}

// Poll checks the status of a previously submitted request. The provider
// sometimes wraps terminal states in error-shaped responses; a non-2xx body
// that still carries a recognizable status field is honored as that status.
func (c *Client) Poll(ctx context.Context, id string) (*PollResult, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("kontext: request id is required")
	}
	endpoint := c.baseURL + "/v1/get_result?id=" + url.QueryEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("kontext: build request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("x-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kontext: poll failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("kontext: read response: %w", err)
	}
	var out pollResponse
	decodeErr := json.Unmarshal(raw, &out)
	if resp.StatusCode >= 300 {
		if decodeErr == nil && strings.TrimSpace(out.Status) != "" {
			c.logger.Debug().Int("status", resp.StatusCode).Str("provider_status", out.Status).
				Msg("kontext: terminal status delivered in error-shaped response")
			return normalize(out), nil
		}
		return nil, fmt.Errorf("kontext: poll status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("kontext: decode response: %w", decodeErr)
	}
	return normalize(out), nil
}

func normalize(resp pollResponse) *PollResult {
	detail := strings.TrimSpace(resp.Error)
	if detail == "" {
		detail = strings.TrimSpace(resp.Detail)
	}
	switch strings.TrimSpace(resp.Status) {
	case "Ready":
		return &PollResult{Status: StatusReady, Sample: resp.Result.Sample}
	case "Content Moderated", "Request Moderated":
		return &PollResult{Status: StatusModerated, Detail: strings.TrimSpace(resp.Status)}
	case "Error", "Failed":
		return &PollResult{Status: StatusError, Detail: detail}
	default:
		// Queued, Pending, Task not found yet: keep polling.
		return &PollResult{Status: StatusPending, Detail: detail}
	}
}

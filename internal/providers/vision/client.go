// Package vision wraps the Mistral chat-completions API with vision input.
// It answers the two questions the pipeline asks about an uploaded image:
// what pronoun fits the main subject, and which transformation instructions
// would suit it.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("vision: api key is required")

// Pronoun is the subject classification returned by the model.
type Pronoun string

const (
	PronounHe   Pronoun = "he"
	PronounShe  Pronoun = "she"
	PronounThey Pronoun = "they"
	PronounIt   Pronoun = "it"
)

const (
	classifyInstruction = "Look at this image and identify the main subject. " +
		"If it's a person, determine their apparent gender and respond with just the appropriate pronoun: 'he', 'she', or 'they'. " +
		"If it's not a person, respond with 'it'. Be very brief - just the pronoun."

	ideasInstructionFmt = "Look at this image and write %d distinct image transformation instructions for it. " +
		"Each instruction must start with a verb, describe one creative restyling (character, material, environment, or art style), " +
		"and require that the subject's pose and placement stay identical. " +
		"Respond with a numbered list, one instruction per line, and nothing else."
)

// Options configures the Mistral vision client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	MaxTokens      int
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the Mistral chat-completions endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
	logger     *infra.Logger
}

type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []chatContent `json:"content"`
}

type chatContent struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Message string `json:"message"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.mistral.ai/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "pixtral-large-2411"
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 500
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
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		maxTokens:  maxTokens,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// ClassifySubject asks the model for the pronoun that fits the image's main
// subject. Unrecognized answers are mapped to "they"; transport failures are
// returned so the caller can decide on its fallback.
func (c *Client) ClassifySubject(ctx context.Context, image []byte) (Pronoun, error) {
	text, err := c.complete(ctx, classifyInstruction, image)
	if err != nil {
		return PronounThey, err
	}
	return NormalizePronoun(text), nil
}

// GenerateIdeas asks the model for n transformation instructions and parses
// the numbered-list response. The returned slice may be shorter than n; the
// caller pads from its fallback pool.
func (c *Client) GenerateIdeas(ctx context.Context, image []byte, n int) ([]string, error) {
	text, err := c.complete(ctx, fmt.Sprintf(ideasInstructionFmt, n), image)
	if err != nil {
		return nil, err
	}
	ideas := ParseNumberedLines(text)
	if len(ideas) == 0 {
		return nil, fmt.Errorf("vision: response contained no numbered instructions")
	}
	if len(ideas) > n {
		ideas = ideas[:n]
	}
	return ideas, nil
}

// NormalizePronoun maps a free-form model answer onto the supported set,
// defaulting to "they".
func NormalizePronoun(answer string) Pronoun {
	switch Pronoun(strings.ToLower(strings.Trim(strings.TrimSpace(answer), ".'\""))) {
	case PronounHe:
		return PronounHe
	case PronounShe:
		return PronounShe
	case PronounIt:
		return PronounIt
	default:
		return PronounThey
	}
}

func (c *Client) complete(ctx context.Context, instruction string, image []byte) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	if len(image) == 0 {
		return "", errors.New("vision: image is required")
	}
	payload := chatRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []chatMessage{{
			Role: "user",
			Content: []chatContent{
				{Type: "text", Text: instruction},
				{Type: "image_url", ImageURL: &chatImageURL{
					URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image),
				}},
			},
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("vision: encode request: %w", err)
	}
	endpoint := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("vision: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("vision: request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("vision: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		c.logger.Warn().Int("status", resp.StatusCode).Msg("vision: provider returned error status")
		return "", fmt.Errorf("vision: provider status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("vision: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("vision: response contained no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

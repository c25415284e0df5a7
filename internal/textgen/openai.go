package textgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/shopsheet/internal/core"
)

// OpenAIConfig configures the chat completions client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// DefaultOpenAIConfig returns defaults for api.openai.com.
func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		APIKey:  apiKey,
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
		Timeout: 60 * time.Second,
	}
}

// OpenAI calls the chat completions endpoint.
type OpenAI struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	def := DefaultOpenAIConfig(cfg.APIKey)
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &OpenAI{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float32         `json:"temperature"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Error *openAIError `json:"error,omitempty"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// Complete sends one chat completion request. There are no retries; a 429
// surfaces as core.ErrQuotaExceeded.
func (c *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}
	start := time.Now()

	var messages []openAIMessage
	if req.System != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(openAIRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("openai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", transportError("openai", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transportError("openai", err)
	}

	var parsed openAIResponse
	jsonErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		if jsonErr == nil && parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return "", statusError("openai", resp.StatusCode, msg)
	}
	if jsonErr != nil {
		return "", fmt.Errorf("openai: parse response: %w", jsonErr)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai: no completion returned")
	}

	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	slog.DebugContext(ctx, "openai completion",
		"model", c.model,
		"prompt_len", len(req.Prompt),
		"response_len", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

// statusError maps an HTTP status from a model API to a core sentinel.
func statusError(backend string, status int, msg string) error {
	switch status {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w: %s", backend, core.ErrQuotaExceeded, msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s: %w: %s", backend, core.ErrAuth, msg)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return fmt.Errorf("%s: %w: %s", backend, core.ErrTimeout, msg)
	default:
		return fmt.Errorf("%s: status %d: %s", backend, status, msg)
	}
}

package textgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig configures the Gemini completer. BaseURL is for tests and
// proxies; empty means the public endpoint.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Gemini completes prompts with the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, model: cfg.Model}, nil
}

func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()

	gc := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), gc)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", statusError("gemini", apiErr.Code, apiErr.Message)
		}
		return "", transportError("gemini", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini: no completion returned")
	}
	slog.DebugContext(ctx, "gemini completion",
		"model", g.model,
		"prompt_len", len(req.Prompt),
		"response_len", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

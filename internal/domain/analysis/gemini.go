package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "gemini-1.5-flash-latest"

	// RequestTimeout bounds a single generateContent call.
	RequestTimeout = 60 * time.Second
)

// GeminiClient generates text with a Gemini model through the genai SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGeminiClient creates a client for model authenticated with apiKey. An
// empty baseURL keeps the public Gemini API endpoint.
func NewGeminiClient(ctx context.Context, apiKey, model, baseURL string, logger *slog.Logger) (*GeminiClient, error) {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
			Timeout: genai.Ptr(RequestTimeout),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model, logger: logger}, nil
}

// Model returns the configured model name.
func (c *GeminiClient) Model() string {
	return c.model
}

// Generate sends prompt as a single user turn and returns the text of the
// first candidate.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("%w: status %d: %s", ErrUpstream, apiErr.Code, apiErr.Message)
		}
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	c.logger.Debug("gemini response",
		slog.String("model", c.model),
		slog.Int("candidates", len(resp.Candidates)),
		slog.Duration("elapsed", time.Since(start)),
	)

	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked: %s", ErrUpstream, fb.BlockReason)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: no text in response", ErrUpstream)
	}
	return text, nil
}

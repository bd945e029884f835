package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiGenerator implements TextGenerator over the Gemini API. The client
// is constructed once at the process entry point and injected, so tests can
// substitute a fake generator.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a Gemini-backed generator.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiGenerator{client: client, model: model}, nil
}

// Generate sends a single non-streaming prompt and returns the raw text.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		return "", err
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty completion from model %s", g.model)
	}
	return text, nil
}

// IsRateLimit reports whether err is a quota/rate-limit signal from the
// API. Only these errors are worth retrying; everything else goes straight
// to the fail-closed fallback.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Status == "RESOURCE_EXHAUSTED" {
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

// RetryHint extracts the server-provided retry delay from a rate-limit
// error, when present. The API embeds a google.rpc.RetryInfo detail with a
// retryDelay like "17s".
func RetryHint(err error) (time.Duration, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}
	for _, detail := range apiErr.Details {
		t, _ := detail["@type"].(string)
		if !strings.HasSuffix(t, "google.rpc.RetryInfo") {
			continue
		}
		raw, _ := detail["retryDelay"].(string)
		if raw == "" {
			continue
		}
		d, perr := time.ParseDuration(raw)
		if perr != nil || d <= 0 {
			continue
		}
		return d, true
	}
	return 0, false
}

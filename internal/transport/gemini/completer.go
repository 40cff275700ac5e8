// Package gemini adapts the Google GenAI SDK to the one-method Completer
// contract used by answer synthesis. The rest of the service never sees SDK
// response shapes.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Completer produces grounded answers via the Gemini API.
type Completer struct {
	client *genai.Client
	model  string
}

// Config holds the Gemini client settings.
type Config struct {
	APIKey string
	Model  string
}

// NewCompleter creates a Gemini-backed completer. The client is created once
// and reused across requests.
func NewCompleter(ctx context.Context, cfg Config) (*Completer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Completer{client: client, model: cfg.Model}, nil
}

// Complete sends prompt and returns the trimmed response text.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(
		ctx,
		c.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("empty completion response")
	}
	return text, nil
}

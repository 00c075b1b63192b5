package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// ErrEmptyResponse is returned when the model answers with no text.
var ErrEmptyResponse = errors.New("llm: empty response")

// GeminiClient is a thin wrapper around the official genai client that
// turns a prompt into the model's text answer.
type GeminiClient struct {
	cli   *genai.Client
	model string
}

// NewGeminiClient creates a client for the Gemini API.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("llm: GEMINI_API_KEY is not set")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: create gemini client: %w", err)
	}
	return &GeminiClient{cli: cli, model: model}, nil
}

func (g *GeminiClient) Name() string { return "gemini:" + g.model }

// Complete sends prompt and asks for a JSON answer.
func (g *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return "", fmt.Errorf("llm: generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// Gemini samples a single-turn message API: the system prompt goes in as a
// system instruction and the user's text as the only turn.
type Gemini struct {
	Model  string
	client *genai.Client
}

// NewGemini creates a Gemini API client. baseURL and httpClient are optional.
func NewGemini(ctx context.Context, apiKey, model, baseURL string, httpClient *http.Client) (*Gemini, error) {
	if apiKey == "" {
		return nil, Permanent(errors.New("gemini api key is required"))
	}
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Gemini{Model: model, client: client}, nil
}

// Complete requests samples candidates in one call.
func (g *Gemini) Complete(ctx context.Context, p Prompt, samples int) ([]string, error) {
	cfg := &genai.GenerateContentConfig{
		CandidateCount: int32(samples),
		Temperature:    genai.Ptr(p.Temperature),
	}
	if p.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(p.System, genai.RoleUser)
	}
	if p.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(p.MaxTokens)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.Model, genai.Text(p.User), cfg)
	if err != nil {
		return nil, classifyGemini(err)
	}

	var out []string
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, part := range c.Content.Parts {
			if part != nil && !part.Thought {
				b.WriteString(part.Text)
			}
		}
		if b.Len() > 0 {
			out = append(out, b.String())
		}
	}
	if len(out) == 0 {
		return nil, Transient(errors.New("gemini: no candidates"))
	}
	return out, nil
}

func classifyGemini(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return ClassifyHTTP(apiErr.Code, fmt.Errorf("gemini: %w", err))
	}
	return Transient(fmt.Errorf("gemini: %w", err))
}

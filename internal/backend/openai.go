package backend

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI samples a chat-completion model. The system prompt and the user's
// text travel as separate messages and all samples come from one request.
type OpenAI struct {
	Model  string
	client openai.Client
}

// NewOpenAI creates a chat-completion backend. SDK retries are disabled;
// retry policy belongs to the caller.
func NewOpenAI(apiKey, model, baseURL string, extra ...option.RequestOption) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	opts = append(opts, extra...)
	return &OpenAI{Model: model, client: openai.NewClient(opts...)}
}

// Complete requests samples choices in a single call.
func (o *OpenAI) Complete(ctx context.Context, p Prompt, samples int) ([]string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(p.System),
			openai.UserMessage(p.User),
		},
		N:           openai.Int(int64(samples)),
		Temperature: openai.Float(float64(p.Temperature)),
	}
	if p.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(p.MaxTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyOpenAI(err)
	}
	if len(resp.Choices) == 0 {
		return nil, Transient(errors.New("openai: empty choices"))
	}

	out := make([]string, 0, len(resp.Choices))
	for _, c := range resp.Choices {
		out = append(out, c.Message.Content)
	}
	return out, nil
}

func classifyOpenAI(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return ClassifyHTTP(apiErr.StatusCode, fmt.Errorf("openai: %w", err))
	}
	return Transient(fmt.Errorf("openai: %w", err))
}

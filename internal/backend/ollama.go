package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultOllamaURL is where a local Ollama listens by default.
const DefaultOllamaURL = "http://localhost:11434"

// Ollama samples a local model through Ollama's /api/generate endpoint, one
// request per sample.
type Ollama struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// NewOllama creates an Ollama client. An empty baseURL uses DefaultOllamaURL.
func NewOllama(baseURL, model string, client *http.Client) *Ollama {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Ollama{BaseURL: strings.TrimRight(baseURL, "/"), Model: model, HTTPClient: client}
}

// --- DTO ---

type ollamaOptions struct {
	Temperature float32  `json:"temperature"`
	NumPredict  int      `json:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Raw     bool          `json:"raw"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

// Complete issues samples sequential requests. A failure after at least one
// success returns the completions gathered so far.
func (o *Ollama) Complete(ctx context.Context, p Prompt, samples int) ([]string, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  o.Model,
		Prompt: p.Text(),
		Raw:    true,
		Stream: false,
		Options: ollamaOptions{
			Temperature: p.Temperature,
			NumPredict:  p.MaxTokens,
			Stop:        []string{"\nUser:"},
		},
	})
	if err != nil {
		return nil, Permanent(fmt.Errorf("marshal: %w", err))
	}

	var out []string
	for i := 0; i < samples; i++ {
		text, err := o.generate(ctx, body)
		if err != nil {
			if len(out) > 0 {
				return out, nil
			}
			return nil, err
		}
		out = append(out, text)
	}
	return out, nil
}

func (o *Ollama) generate(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", Permanent(fmt.Errorf("ollama request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return "", Transient(fmt.Errorf("ollama post: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Transient(fmt.Errorf("ollama read: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(data, "error").String()
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		return "", ClassifyHTTP(resp.StatusCode, fmt.Errorf("ollama error %d: %s", resp.StatusCode, msg))
	}

	if !gjson.ValidBytes(data) {
		return "", Transient(errors.New("ollama returned invalid JSON"))
	}
	field := gjson.GetBytes(data, "response")
	if !field.Exists() {
		return "", Transient(errors.New("ollama response has no text"))
	}
	return field.String(), nil
}

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const ollamaValidateTimeout = 5 * time.Second

// Ollama talks to a local Ollama daemon. No credentials and no circuit
// breaker; the only realistic failure is the daemon not running, which
// surfaces immediately as a connection error.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewOllama(baseURL, model string, timeout time.Duration) *Ollama {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.1:8b"
	}
	return &Ollama{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (o *Ollama) Name() string { return ProviderOllama }

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []Message     `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error"`
}

func (o *Ollama) Complete(ctx context.Context, req Request) (*Response, error) {
	temperature := req.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	body, err := json.Marshal(ollamaChatRequest{
		Model:    o.model,
		Messages: req.Messages,
		Stream:   false,
		Options:  ollamaOptions{Temperature: temperature, NumPredict: maxTokens},
	})
	if err != nil {
		return nil, newError(ProviderOllama, KindUpstreamRejected, "failed to encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, newError(ProviderOllama, KindUpstreamRejected, "failed to build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, newError(ProviderOllama, KindTimeout, "request timed out", err)
		}
		return nil, newError(ProviderOllama, KindUnreachable, "local backend unreachable", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, newError(ProviderOllama, KindUnreachable, "failed to read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newError(ProviderOllama, KindUpstreamRejected, fmt.Sprintf("status %d: %s", resp.StatusCode, truncateBody(payload)), nil)
	}

	var parsed ollamaChatResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, newError(ProviderOllama, KindUnreachable, "malformed response", err)
	}
	if parsed.Error != "" {
		return nil, newError(ProviderOllama, KindUpstreamRejected, parsed.Error, nil)
	}
	if parsed.Message.Content == "" {
		return nil, newError(ProviderOllama, KindUpstreamRejected, "empty completion", nil)
	}

	return &Response{Content: parsed.Message.Content, Provider: ProviderOllama, Model: o.model}, nil
}

// Validate checks that the daemon answers /api/tags. Bounded at 5s so
// a down daemon does not hang credential checks.
func (o *Ollama) Validate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ollamaValidateTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return newError(ProviderOllama, KindUpstreamRejected, "failed to build request", err)
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return newError(ProviderOllama, KindUnreachable, "local backend unreachable", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode != http.StatusOK {
		return newError(ProviderOllama, KindUnreachable, fmt.Sprintf("tags endpoint returned status %d", resp.StatusCode), nil)
	}
	return nil
}

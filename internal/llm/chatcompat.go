package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"document-qa-platform/internal/logger"
)

// chatCompatClient speaks the OpenAI-compatible chat completions wire
// format shared by Groq and OpenRouter. Cloud calls go through a
// circuit breaker so a struggling upstream is skipped quickly instead
// of burning the request timeout every time.
type chatCompatClient struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func newChatCompatClient(name, baseURL, apiKey, model string, timeout time.Duration) *chatCompatClient {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "provider", name, "from", from.String(), "to", to.String())
		},
	})

	return &chatCompatClient{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
	}
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *chatCompatClient) Name() string { return c.name }

func (c *chatCompatClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if c.apiKey == "" {
		return nil, newError(c.name, KindMissingCredentials, "no API key configured", nil)
	}

	tracer := otel.Tracer("llm-provider")
	ctx, span := tracer.Start(ctx, c.name+".complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", c.name),
		attribute.String("llm.model", c.model),
		attribute.Int("llm.messages", len(req.Messages)),
	)

	temperature := req.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	body, err := json.Marshal(chatCompletionRequest{
		Model:       c.model,
		Messages:    req.Messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, newError(c.name, KindUpstreamRejected, "failed to encode request", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doComplete(ctx, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, newError(c.name, KindUpstreamUnavailable, "circuit breaker open", err)
		}
		return nil, err
	}

	return result.(*Response), nil
}

func (c *chatCompatClient) doComplete(ctx context.Context, body []byte) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, newError(c.name, KindUpstreamRejected, "failed to build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, newError(c.name, KindTimeout, "request timed out", err)
		}
		return nil, newError(c.name, KindUpstreamUnavailable, "request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, newError(c.name, KindUpstreamUnavailable, "failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		kind := KindUpstreamRejected
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			kind = KindUpstreamUnavailable
		}
		return nil, newError(c.name, kind, fmt.Sprintf("status %d: %s", resp.StatusCode, truncateBody(payload)), nil)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, newError(c.name, KindUpstreamUnavailable, "malformed response", err)
	}
	if parsed.Error != nil {
		return nil, newError(c.name, KindUpstreamRejected, parsed.Error.Message, nil)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return nil, newError(c.name, KindUpstreamUnavailable, "empty completion", nil)
	}

	return &Response{
		Content:  parsed.Choices[0].Message.Content,
		Provider: c.name,
		Model:    c.model,
	}, nil
}

// Validate lists models with the configured key. A 401/403 means the
// key is bad; anything 2xx means it works.
func (c *chatCompatClient) Validate(ctx context.Context) error {
	if c.apiKey == "" {
		return newError(c.name, KindMissingCredentials, "no API key configured", nil)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return newError(c.name, KindUpstreamRejected, "failed to build request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return newError(c.name, KindUpstreamUnavailable, "validation request failed", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return newError(c.name, KindUpstreamRejected, "invalid API key", nil)
	case resp.StatusCode >= 400:
		return newError(c.name, KindUpstreamUnavailable, fmt.Sprintf("validation returned status %d", resp.StatusCode), nil)
	}
	return nil
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	var te timeout
	return errors.As(err, &te) && te.Timeout()
}

func truncateBody(b []byte) string {
	const max = 300
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

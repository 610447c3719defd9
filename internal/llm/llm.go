package llm

import "context"

// Message is one chat turn sent to a provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a normalized completion request. Providers translate it to
// their own wire format.
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Response is a normalized completion result.
type Response struct {
	Content  string
	Provider string
	Model    string
}

// Provider is one configured LLM backend.
type Provider interface {
	Name() string
	// Complete runs a chat completion. Errors are *Error with a
	// normalized kind.
	Complete(ctx context.Context, req Request) (*Response, error)
	// Validate checks the configured credentials or endpoint without
	// running a completion.
	Validate(ctx context.Context) error
}

const (
	ProviderGroq       = "groq"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
)

const (
	defaultTemperature = 0.3
	defaultMaxTokens   = 1024
)

package llm

import (
	"context"
	"fmt"
	"time"

	"document-qa-platform/internal/logger"
)

// Config carries provider settings. Kept separate from the application
// config so this package has no dependency on it.
type Config struct {
	GroqAPIKey       string
	GroqModel        string
	OpenRouterAPIKey string
	OpenRouterModel  string
	OllamaBaseURL    string
	OllamaModel      string
	CloudTimeout     time.Duration
	LocalTimeout     time.Duration
}

// Router holds the configured providers and picks among them. Selection
// prefers the local backend when reachable, then the free cloud tier,
// then the paid one.
type Router struct {
	cfg       Config
	providers map[string]Provider
	order     []string
}

func NewRouter(cfg Config) *Router {
	if cfg.CloudTimeout == 0 {
		cfg.CloudTimeout = 15 * time.Second
	}
	if cfg.LocalTimeout == 0 {
		cfg.LocalTimeout = 60 * time.Second
	}

	r := &Router{
		cfg:       cfg,
		providers: make(map[string]Provider),
		order:     []string{ProviderOllama, ProviderGroq, ProviderOpenRouter},
	}
	r.providers[ProviderOllama] = NewOllama(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.LocalTimeout)
	r.providers[ProviderGroq] = NewGroq(cfg.GroqAPIKey, cfg.GroqModel, cfg.CloudTimeout)
	r.providers[ProviderOpenRouter] = NewOpenRouter(cfg.OpenRouterAPIKey, cfg.OpenRouterModel, cfg.CloudTimeout)
	return r
}

// Provider returns a registered provider by name.
func (r *Router) Provider(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	return p, nil
}

// Register replaces a provider. Used by tests and by deployments that
// bring their own transport.
func (r *Router) Register(p Provider) {
	r.providers[p.Name()] = p
}

// available reports whether a provider is worth attempting without
// making a network call: cloud providers need a key, the local backend
// is always worth one try.
func (r *Router) available(name string) bool {
	switch name {
	case ProviderGroq:
		return r.cfg.GroqAPIKey != ""
	case ProviderOpenRouter:
		return r.cfg.OpenRouterAPIKey != ""
	case ProviderOllama:
		return true
	}
	return false
}

// Select returns the provider that would serve a request: an explicitly
// requested one, or the first available by preference. The local
// backend counts as available only when it answers its tags endpoint.
func (r *Router) Select(ctx context.Context, requested string) (Provider, error) {
	if requested != "" {
		p, err := r.Provider(requested)
		if err != nil {
			return nil, err
		}
		return p, nil
	}

	for _, name := range r.order {
		if !r.available(name) {
			continue
		}
		p := r.providers[name]
		if name == ProviderOllama {
			if err := p.Validate(ctx); err != nil {
				continue
			}
		}
		return p, nil
	}
	return nil, ErrNoProvider
}

// Complete runs the request on the selected provider and fails over to
// the remaining ones when the failure is retryable. A rejected request
// is returned as-is; retrying it elsewhere cannot succeed.
func (r *Router) Complete(ctx context.Context, requested string, req Request) (*Response, error) {
	if requested != "" {
		p, err := r.Provider(requested)
		if err != nil {
			return nil, err
		}
		return p.Complete(ctx, req)
	}

	var lastErr error
	attempted := false
	for _, name := range r.order {
		if !r.available(name) {
			continue
		}
		p := r.providers[name]
		if name == ProviderOllama {
			if err := p.Validate(ctx); err != nil {
				lastErr = err
				continue
			}
		}

		attempted = true
		resp, err := p.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return nil, err
		}
		logger.Warn("provider failed, trying next", "provider", name, "error", err)
	}

	// Nothing completed. If no provider even accepted the request the
	// caller should see the configuration problem, not the last probe
	// failure.
	if !attempted || lastErr == nil {
		return nil, ErrNoProvider
	}
	return nil, lastErr
}

// ValidateCredentials checks supplied credentials for one provider
// without touching the router's own configuration.
func (r *Router) ValidateCredentials(ctx context.Context, provider, apiKey, baseURL string) error {
	switch provider {
	case ProviderGroq:
		return NewGroq(apiKey, r.cfg.GroqModel, r.cfg.CloudTimeout).Validate(ctx)
	case ProviderOpenRouter:
		return NewOpenRouter(apiKey, r.cfg.OpenRouterModel, r.cfg.CloudTimeout).Validate(ctx)
	case ProviderOllama:
		if baseURL == "" {
			baseURL = r.cfg.OllamaBaseURL
		}
		return NewOllama(baseURL, r.cfg.OllamaModel, r.cfg.LocalTimeout).Validate(ctx)
	default:
		return fmt.Errorf("unknown provider: %s", provider)
	}
}

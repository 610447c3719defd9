package llm

import (
	"errors"
	"fmt"
)

// Normalized provider failure kinds. Callers branch on these instead of
// parsing provider-specific messages.
const (
	KindMissingCredentials  = "missing-credentials"
	KindUpstreamRejected    = "upstream-rejected"
	KindUpstreamUnavailable = "upstream-unavailable"
	KindUnreachable         = "local-backend-unreachable"
	KindTimeout             = "timeout"
)

// ErrNoProvider is returned when auto-selection finds nothing configured.
var ErrNoProvider = errors.New("no provider available: configure an API key or start a local backend")

// Error is a provider failure with a normalized kind.
type Error struct {
	Provider string
	Kind     string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(provider, kind, message string, err error) *Error {
	return &Error{Provider: provider, Kind: kind, Message: message, Err: err}
}

// IsRetryable reports whether failing over to another provider could
// help. Rejected requests (bad prompt, context too large) fail the same
// way everywhere; unavailable or unreachable backends do not.
func IsRetryable(err error) bool {
	var pe *Error
	if !errors.As(err, &pe) {
		return true
	}
	switch pe.Kind {
	case KindUpstreamUnavailable, KindUnreachable, KindTimeout:
		return true
	default:
		return false
	}
}

// Package llmerr defines the error taxonomy shared across every provider
// adapter and the streaming pipeline. Every error the library returns to a
// caller is (or wraps) an *Error with one of the Kinds below, so callers can
// branch with errors.As instead of string-matching messages.
package llmerr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error. Distinct kinds carry distinct recovery policy
// at the caller's discretion — this package does not retry or back off.
type Kind int

const (
	// KindTransport covers network I/O failures: connect, TLS, read.
	KindTransport Kind = iota
	// KindAuth covers token acquisition or rejection (401/403, credential
	// provider failure).
	KindAuth
	// KindProviderAPI covers a non-2xx HTTP response from the provider,
	// body captured verbatim.
	KindProviderAPI
	// KindRateLimit is a KindProviderAPI whose response is recognizable as
	// a rate-limit rejection (HTTP 429, or a provider-specific marker).
	KindRateLimit
	// KindFraming covers SSE parse failures: invalid UTF-8, a dangling
	// line at EOF, or an oversize buffered line.
	KindFraming
	// KindNormalizer covers unexpected wire payloads: bad JSON, a missing
	// discriminator, a tool call with no arguments at completion.
	KindNormalizer
	// KindConfig covers missing required configuration at factory time.
	KindConfig
	// KindStreaming is a generic terminal error surfaced into the event
	// stream that does not fit a more specific kind above.
	KindStreaming
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAuth:
		return "auth"
	case KindProviderAPI:
		return "provider_api"
	case KindRateLimit:
		return "rate_limit"
	case KindFraming:
		return "framing"
	case KindNormalizer:
		return "normalizer"
	case KindConfig:
		return "config"
	case KindStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by this module. Provider carries
// the adapter name ("openai", "google", "anthropic") for multi-provider
// callers; it is empty for kind-agnostic errors (framing, config).
type Error struct {
	Kind     Kind
	Provider string
	Message  string
	// Body holds the verbatim response body for KindProviderAPI/KindRateLimit
	// errors, so callers can inspect provider-specific error shapes we don't
	// model.
	Body string
	// StatusCode is the HTTP status for KindProviderAPI/KindRateLimit errors.
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Transport wraps a network I/O failure.
func Transport(provider string, err error) *Error {
	return &Error{Kind: KindTransport, Provider: provider, Message: err.Error(), Err: err}
}

// Auth wraps a token-acquisition or credential-rejection failure.
func Auth(provider, message string, err error) *Error {
	return &Error{Kind: KindAuth, Provider: provider, Message: message, Err: err}
}

// ProviderAPI wraps a non-2xx HTTP response. isRateLimit marks HTTP 429 /
// provider-recognized rate-limit rejections as KindRateLimit instead.
func ProviderAPI(provider string, statusCode int, body string, isRateLimit bool) *Error {
	kind := KindProviderAPI
	if isRateLimit {
		kind = KindRateLimit
	}
	return &Error{
		Kind:       kind,
		Provider:   provider,
		Message:    fmt.Sprintf("API error (status %d)", statusCode),
		Body:       body,
		StatusCode: statusCode,
	}
}

// Framing wraps an SSE parse failure.
func Framing(message string) *Error {
	return &Error{Kind: KindFraming, Message: message}
}

// Normalizer wraps an unexpected wire payload from a specific provider.
func Normalizer(provider, message string) *Error {
	return &Error{Kind: KindNormalizer, Provider: provider, Message: message}
}

// Config wraps a missing-or-invalid configuration at factory time.
func Config(message string) *Error {
	return &Error{Kind: KindConfig, Message: message}
}

// Streaming wraps a generic terminal streaming error.
func Streaming(provider, message string) *Error {
	return &Error{Kind: KindStreaming, Provider: provider, Message: message}
}

// IsKind reports whether err wraps an *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

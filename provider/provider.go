// Package provider defines the Provider contract every backend adapter
// satisfies: one operation, Generate, returning a single-use Response.
package provider

import (
	"context"

	"github.com/llmclient/llmclient/llmtypes"
	"github.com/llmclient/llmclient/response"
)

// Provider is the interface every LLM backend adapter implements. Go
// interfaces are implicit — any type exposing this method set satisfies
// Provider with no declaration required.
type Provider interface {
	// Name returns the provider identifier, e.g. "openai", "google", or
	// "anthropic".
	Name() string

	// Generate sends req upstream and returns a Response wrapping the
	// canonical event stream. ctx governs cancellation of the whole
	// request, including the in-flight HTTP body once streaming starts.
	Generate(ctx context.Context, req *llmtypes.LLMRequest) (*response.Response, error)
}

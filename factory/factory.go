// Package factory builds provider.Provider instances from explicit
// configuration or from the process environment, dispatching on the
// configured ProviderType to pick the backend.
package factory

import (
	"fmt"
	"net/http"
	"os"

	"github.com/llmclient/llmclient/internal/gauth"
	"github.com/llmclient/llmclient/internal/httpclient"
	"github.com/llmclient/llmclient/llmerr"
	"github.com/llmclient/llmclient/provider"
	"github.com/llmclient/llmclient/provider/openai"
	"github.com/llmclient/llmclient/provider/vertexanthropic"
	"github.com/llmclient/llmclient/provider/vertexgoogle"
)

// ProviderType names one of the supported backends.
type ProviderType int

const (
	OpenAI ProviderType = iota
	Google
	Anthropic
)

func (t ProviderType) String() string {
	switch t {
	case OpenAI:
		return "openai"
	case Google:
		return "google"
	case Anthropic:
		return "anthropic"
	default:
		return "unknown"
	}
}

// IsVertex reports whether t is served through Vertex AI rather than a
// provider-hosted API.
func (t ProviderType) IsVertex() bool {
	return t == Google || t == Anthropic
}

// Config describes how to construct a single Provider.
type Config struct {
	Type ProviderType

	// OpenAI
	APIKey  string
	BaseURL string // optional override, all providers

	// Vertex (Google, Anthropic)
	ProjectID   string
	Location    string
	AccessToken string // if set, used as a static bearer token instead of ADC

	Client *http.Client // optional override; defaults to httpclient.New(httpclient.DefaultTimeout)
}

// New builds a Provider from an explicit Config.
func New(cfg Config) (provider.Provider, error) {
	client := cfg.Client
	if client == nil {
		client = httpclient.New(httpclient.DefaultTimeout)
	}

	switch cfg.Type {
	case OpenAI:
		if cfg.APIKey == "" {
			return nil, llmerr.Config("API key required for OpenAI provider")
		}
		return openai.New(cfg.APIKey, cfg.BaseURL, client), nil

	case Google:
		if cfg.ProjectID == "" {
			return nil, llmerr.Config("project ID required for Google provider")
		}
		if cfg.Location == "" {
			return nil, llmerr.Config("location required for Google provider")
		}
		return vertexgoogle.New(cfg.ProjectID, cfg.Location, cfg.BaseURL, tokenSource(cfg), client), nil

	case Anthropic:
		if cfg.ProjectID == "" {
			return nil, llmerr.Config("project ID required for Anthropic provider")
		}
		if cfg.Location == "" {
			return nil, llmerr.Config("location required for Anthropic provider")
		}
		return vertexanthropic.New(cfg.ProjectID, cfg.Location, cfg.BaseURL, tokenSource(cfg), client), nil

	default:
		return nil, llmerr.Config(fmt.Sprintf("unknown provider type %q", cfg.Type.String()))
	}
}

func tokenSource(cfg Config) gauth.TokenSource {
	if cfg.AccessToken != "" {
		return gauth.Static(cfg.AccessToken)
	}
	return gauth.Ambient()
}

const defaultVertexLocation = "europe-west1"

// FromEnv infers a Config from the process environment and builds the
// corresponding Provider.
//
// If PROVIDER_TYPE is set, it selects the provider directly: "openai",
// "google", or "anthropic", each requiring that provider's credentials.
// If unset, the provider is inferred: OpenAI if OPENAI_API_KEY is
// present, else Vertex, where ANTHROPIC_MODEL selects Anthropic and
// everything else falls back to Google.
func FromEnv() (provider.Provider, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return New(*cfg)
}

// ConfigFromEnv builds a Config from the process environment without
// constructing the provider, so callers can inspect or adjust it first.
func ConfigFromEnv() (*Config, error) {
	if explicit, ok := os.LookupEnv("PROVIDER_TYPE"); ok {
		switch explicit {
		case "openai":
			return openAIConfigFromEnv()
		case "google":
			return vertexConfigFromEnv(Google, "Google")
		case "anthropic":
			return vertexConfigFromEnv(Anthropic, "Anthropic")
		default:
			return nil, llmerr.Config(fmt.Sprintf("invalid PROVIDER_TYPE %q, valid values are: openai, google, anthropic", explicit))
		}
	}

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		return &Config{Type: OpenAI, APIKey: apiKey}, nil
	}

	// No explicit selection and no OpenAI key: fall back to Vertex,
	// regardless of whether Google credentials are visible yet — a
	// missing project ID surfaces as a specific Config error below
	// rather than the generic "no credentials found" message.
	providerType, label := Google, "Google"
	if os.Getenv("ANTHROPIC_MODEL") != "" {
		providerType, label = Anthropic, "Anthropic"
	}
	return vertexConfigFromEnv(providerType, label)
}

func openAIConfigFromEnv() (*Config, error) {
	apiKey, err := requireEnv("OPENAI_API_KEY")
	if err != nil {
		return nil, err
	}
	return &Config{Type: OpenAI, APIKey: apiKey}, nil
}

func vertexConfigFromEnv(t ProviderType, label string) (*Config, error) {
	projectID, err := requireEnvf("GOOGLE_CLOUD_PROJECT", fmt.Sprintf("%s provider", label))
	if err != nil {
		return nil, err
	}
	return &Config{
		Type:        t,
		ProjectID:   projectID,
		Location:    envOr("GOOGLE_CLOUD_REGION", defaultVertexLocation),
		AccessToken: os.Getenv("VERTEX_ACCESS_TOKEN"),
	}, nil
}

func requireEnv(name string) (string, error) {
	return requireEnvf(name, "")
}

func requireEnvf(name, context string) (string, error) {
	v := os.Getenv(name)
	if v == "" {
		if context != "" {
			return "", llmerr.Config(fmt.Sprintf("%s environment variable is required for %s", name, context))
		}
		return "", llmerr.Config(fmt.Sprintf("%s environment variable is required", name))
	}
	return v, nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

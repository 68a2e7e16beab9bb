package factory_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmclient/llmclient/factory"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		"PROVIDER_TYPE", "OPENAI_API_KEY", "GOOGLE_CLOUD_PROJECT", "GOOGLE_CLOUD_REGION",
		"VERTEX_ACCESS_TOKEN", "GOOGLE_APPLICATION_CREDENTIALS", "ANTHROPIC_MODEL",
	}
	saved := make(map[string]string, len(vars))
	for _, v := range vars {
		saved[v] = os.Getenv(v)
		os.Unsetenv(v)
	}
	t.Cleanup(func() {
		for k, v := range saved {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	})
}

func TestConfigFromEnvExplicitOpenAI(t *testing.T) {
	clearProviderEnv(t)
	os.Setenv("PROVIDER_TYPE", "openai")
	os.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := factory.ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, factory.OpenAI, cfg.Type)
	assert.Equal(t, "sk-test", cfg.APIKey)
}

func TestConfigFromEnvExplicitOpenAIMissingKey(t *testing.T) {
	clearProviderEnv(t)
	os.Setenv("PROVIDER_TYPE", "openai")

	_, err := factory.ConfigFromEnv()
	assert.Error(t, err)
}

func TestConfigFromEnvExplicitGoogleDefaultsRegion(t *testing.T) {
	clearProviderEnv(t)
	os.Setenv("PROVIDER_TYPE", "google")
	os.Setenv("GOOGLE_CLOUD_PROJECT", "proj-1")

	cfg, err := factory.ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, factory.Google, cfg.Type)
	assert.Equal(t, "europe-west1", cfg.Location)
}

func TestConfigFromEnvExplicitAnthropicWithToken(t *testing.T) {
	clearProviderEnv(t)
	os.Setenv("PROVIDER_TYPE", "anthropic")
	os.Setenv("GOOGLE_CLOUD_PROJECT", "proj-1")
	os.Setenv("GOOGLE_CLOUD_REGION", "us-east5")
	os.Setenv("VERTEX_ACCESS_TOKEN", "tok")

	cfg, err := factory.ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, factory.Anthropic, cfg.Type)
	assert.Equal(t, "us-east5", cfg.Location)
	assert.Equal(t, "tok", cfg.AccessToken)
}

func TestConfigFromEnvInvalidExplicitType(t *testing.T) {
	clearProviderEnv(t)
	os.Setenv("PROVIDER_TYPE", "bogus")

	_, err := factory.ConfigFromEnv()
	assert.Error(t, err)
}

func TestConfigFromEnvInferenceOpenAIPreferred(t *testing.T) {
	clearProviderEnv(t)
	os.Setenv("OPENAI_API_KEY", "sk-test")
	os.Setenv("GOOGLE_CLOUD_PROJECT", "proj-1") // would also satisfy Vertex inference

	cfg, err := factory.ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, factory.OpenAI, cfg.Type)
}

func TestConfigFromEnvInferenceFallsBackToGoogle(t *testing.T) {
	clearProviderEnv(t)
	os.Setenv("GOOGLE_CLOUD_PROJECT", "proj-1")

	cfg, err := factory.ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, factory.Google, cfg.Type)
}

func TestConfigFromEnvInferenceAnthropicWhenModelSet(t *testing.T) {
	clearProviderEnv(t)
	os.Setenv("GOOGLE_CLOUD_PROJECT", "proj-1")
	os.Setenv("ANTHROPIC_MODEL", "claude-opus")

	cfg, err := factory.ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, factory.Anthropic, cfg.Type)
}

func TestConfigFromEnvNoCredentialsErrors(t *testing.T) {
	clearProviderEnv(t)

	_, err := factory.ConfigFromEnv()
	assert.Error(t, err)
}

func TestNewRejectsMissingOpenAIKey(t *testing.T) {
	_, err := factory.New(factory.Config{Type: factory.OpenAI})
	assert.Error(t, err)
}

func TestNewRejectsMissingVertexProjectID(t *testing.T) {
	_, err := factory.New(factory.Config{Type: factory.Google, Location: "europe-west1"})
	assert.Error(t, err)
}

func TestNewBuildsOpenAIProvider(t *testing.T) {
	p, err := factory.New(factory.Config{Type: factory.OpenAI, APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
}

func TestNewBuildsGoogleProvider(t *testing.T) {
	p, err := factory.New(factory.Config{Type: factory.Google, ProjectID: "proj-1", Location: "europe-west1", AccessToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "google", p.Name())
}

func TestNewBuildsAnthropicProvider(t *testing.T) {
	p, err := factory.New(factory.Config{Type: factory.Anthropic, ProjectID: "proj-1", Location: "europe-west1", AccessToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())
}

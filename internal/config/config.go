// Package config loads optional deployment defaults for llmclient: a
// YAML file pinning a default model, base URL, and timeout per
// provider, layered under the environment-variable profile that
// factory.ConfigFromEnv reads for credentials.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the optional deployment-level configuration for llmclient.
// It never carries credentials; those stay in the environment profile
// factory.ConfigFromEnv reads.
type Config struct {
	Server    ServerConfig                `koanf:"server"`
	Providers map[string]ProviderDefaults `koanf:"providers"`
}

// ServerConfig holds the demo chat server's HTTP settings.
type ServerConfig struct {
	Port         int           `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// ProviderDefaults pins the default model, base URL, and timeout a
// deployment wants for one provider ("openai", "google", "anthropic").
type ProviderDefaults struct {
	Model   string        `koanf:"model"`
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// Load reads configuration from a YAML file, layers environment
// variable overrides on top, and returns a fully populated Config. The
// file is optional: a missing path yields a zero-value Config with
// only the environment layer applied.
func Load(path string) (*Config, error) {
	// Equivalent of require('dotenv').config() in Node; ignored if no
	// .env file is present.
	_ = godotenv.Load()

	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("loading config file: %w", err)
			}
		}
	}

	// Any env var starting with LLMCLIENT_ overrides a config value:
	//   LLMCLIENT_SERVER_PORT -> server.port
	//   LLMCLIENT_PROVIDERS_OPENAI_MODEL -> providers.openai.model
	// Every underscore becomes a path separator, so keys whose own name
	// contains an underscore (read_timeout, write_timeout, base_url) are
	// not reachable this way.
	if err := k.Load(env.Provider("LLMCLIENT_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "LLMCLIENT_")),
			"_", ".",
		)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR_NAME} placeholders in base URLs, so a YAML file can
	// point at an internal proxy address kept out of source control.
	for name, p := range cfg.Providers {
		if strings.HasPrefix(p.BaseURL, "${") && strings.HasSuffix(p.BaseURL, "}") {
			envVar := p.BaseURL[2 : len(p.BaseURL)-1]
			p.BaseURL = os.Getenv(envVar)
			cfg.Providers[name] = p
		}
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	return &cfg, nil
}

package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides: SAWT_GATEWAY_PORT -> gateway.port.
const EnvPrefix = "SAWT_"

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so tokens and keys can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Gateway.Auth.Token = expandEnvVars(cfg.Gateway.Auth.Token)
	for name, provider := range cfg.LLM.Providers {
		provider.APIKey = expandEnvVars(provider.APIKey)
		provider.BaseURL = expandEnvVars(provider.BaseURL)
		cfg.LLM.Providers[name] = provider
	}
}

// envKey maps SAWT_COORDINATOR_TURNTIMEOUT to coordinator.turntimeout.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
}

// Load reads the config file over the defaults, then applies SAWT_*
// environment overrides. A missing file yields defaults plus overrides.
func Load(path string) (Config, error) {
	cfg := Defaults()
	k := koanf.New(".")

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return cfg, &ConfigError{Message: "failed to read environment: " + err.Error()}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to decode config: " + err.Error()}
	}

	applyDefaults(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yamlv3.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yamlv3.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Marshal renders a Config as YAML with secrets masked.
func Marshal(cfg Config) ([]byte, error) {
	if cfg.Gateway.Auth.Token != "" {
		cfg.Gateway.Auth.Token = "********"
	}
	providers := make(map[string]ProviderEntry, len(cfg.LLM.Providers))
	for name, p := range cfg.LLM.Providers {
		if p.APIKey != "" {
			p.APIKey = "********"
		}
		providers[name] = p
	}
	cfg.LLM.Providers = providers
	return yamlv3.Marshal(cfg)
}

// applyDefaults fills zero-value fields left empty by the file or environment.
func applyDefaults(cfg *Config) {
	d := Defaults()
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = d.Gateway.Port
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = d.Gateway.Bind
	}
	if cfg.Coordinator.TurnTimeout == 0 {
		cfg.Coordinator.TurnTimeout = d.Coordinator.TurnTimeout
	}
	if cfg.Coordinator.RetryBackoff == 0 {
		cfg.Coordinator.RetryBackoff = d.Coordinator.RetryBackoff
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = d.Store.Driver
	}
	if cfg.Menu.Embedder == "" {
		cfg.Menu.Embedder = d.Menu.Embedder
	}
	if cfg.Menu.MinScore == 0 {
		cfg.Menu.MinScore = d.Menu.MinScore
	}
	if cfg.Menu.Limit == 0 {
		cfg.Menu.Limit = d.Menu.Limit
	}
	if cfg.Restaurant.Timezone == "" {
		cfg.Restaurant.Timezone = d.Restaurant.Timezone
	}
	if cfg.Restaurant.Currency == "" {
		cfg.Restaurant.Currency = d.Restaurant.Currency
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = d.Logging.ConsoleStyle
	}
}

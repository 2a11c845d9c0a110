package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
	_ "time/tzdata" // restaurant.timezone must resolve on hosts without zoneinfo
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	// Gateway validation
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		add("gateway.port", "port must be 0-65535, got %d", cfg.Gateway.Port)
	}
	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		add("gateway.bind", "must be one of %v, got %q", validBinds, cfg.Gateway.Bind)
	}
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		add("gateway.customBindHost", "required when bind is custom")
	}

	// LLM validation
	for name, p := range cfg.LLM.Providers {
		if p.BaseURL == "" && name != "openai" {
			add("llm.providers."+name+".baseUrl", "required for provider %q", name)
		}
	}
	if cfg.LLM.Model != "" && len(cfg.LLM.Providers) > 0 {
		if provider, _, ok := strings.Cut(cfg.LLM.Model, "/"); ok {
			if _, known := cfg.LLM.Providers[provider]; !known {
				add("llm.model", "unknown provider %q", provider)
			}
		}
	}
	if cfg.LLM.RequestsPerSecond < 0 {
		add("llm.requestsPerSecond", "must be non-negative")
	}
	if cfg.LLM.Burst < 0 {
		add("llm.burst", "must be non-negative")
	}

	// Agent validation
	for _, phase := range []string{"greeting", "location", "order", "checkout"} {
		s := cfg.Agents.For(phase)
		if s.Temperature != nil && (*s.Temperature < 0 || *s.Temperature > 2) {
			add("agents."+phase+".temperature", "must be 0-2, got %.2f", *s.Temperature)
		}
		if s.MaxTokens < 0 {
			add("agents."+phase+".maxTokens", "must be non-negative")
		}
	}

	// Coordinator validation
	if cfg.Coordinator.TurnTimeout < time.Second {
		add("coordinator.turnTimeout", "must be at least 1s, got %s", cfg.Coordinator.TurnTimeout)
	}
	if cfg.Coordinator.LookupRetries < 0 || cfg.Coordinator.LookupRetries > 10 {
		add("coordinator.lookupRetries", "must be 0-10, got %d", cfg.Coordinator.LookupRetries)
	}
	if cfg.Coordinator.RetryBackoff < 0 {
		add("coordinator.retryBackoff", "must be non-negative")
	}

	// Store validation
	validDrivers := []string{"sqlite", "memory"}
	if !slices.Contains(validDrivers, cfg.Store.Driver) {
		add("store.driver", "must be one of %v, got %q", validDrivers, cfg.Store.Driver)
	}

	// Menu validation
	validEmbedders := []string{"openai", "hash"}
	if !slices.Contains(validEmbedders, cfg.Menu.Embedder) {
		add("menu.embedder", "must be one of %v, got %q", validEmbedders, cfg.Menu.Embedder)
	}
	if cfg.Menu.Embedder == "openai" && cfg.Menu.Provider != "" {
		if _, ok := cfg.LLM.Providers[cfg.Menu.Provider]; !ok {
			add("menu.provider", "unknown provider %q", cfg.Menu.Provider)
		}
	}
	if cfg.Menu.MinScore < 0 || cfg.Menu.MinScore > 1 {
		add("menu.minScore", "must be 0-1, got %.2f", cfg.Menu.MinScore)
	}
	if cfg.Menu.Limit < 5 || cfg.Menu.Limit > 10 {
		add("menu.limit", "must be 5-10, got %d", cfg.Menu.Limit)
	}

	// Restaurant validation
	if _, err := time.LoadLocation(cfg.Restaurant.Timezone); err != nil {
		add("restaurant.timezone", "unknown time zone %q", cfg.Restaurant.Timezone)
	}
	if cfg.Restaurant.OpenHour < 0 || cfg.Restaurant.OpenHour > 23 {
		add("restaurant.openHour", "must be 0-23, got %d", cfg.Restaurant.OpenHour)
	}
	if cfg.Restaurant.CloseHour < 0 || cfg.Restaurant.CloseHour > 23 {
		add("restaurant.closeHour", "must be 0-23, got %d", cfg.Restaurant.CloseHour)
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}
	validConsoleStyles := []string{"pretty", "compact", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		add("logging.consoleStyle", "must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle)
	}

	// Hook validation
	for event, entries := range cfg.Hooks.ByEvent() {
		for i, h := range entries {
			if strings.TrimSpace(h.Command) == "" {
				add(fmt.Sprintf("hooks.%s[%d].command", event, i), "command is required")
			}
			if h.Timeout < 0 {
				add(fmt.Sprintf("hooks.%s[%d].timeout", event, i), "must be non-negative")
			}
		}
	}

	return issues
}

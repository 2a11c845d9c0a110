package llm

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/soyeahso/sawt/internal/config"
	"github.com/soyeahso/sawt/internal/logging"
)

// ProviderError is returned when an LLM provider fails.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP status code (401, 429, 500, etc.)
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Registry manages LLM provider clients and resolves model references to clients.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]Client // provider name → client
	aliases  map[string]string // model alias → provider name
	fallback string            // default provider name
	log      *logging.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		aliases: make(map[string]string),
		log:     log.Sub("llm.registry"),
	}
}

// Register adds a client under the given provider name.
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	r.log.Info().Str("provider", name).Msg("registered LLM provider")
}

// Alias maps a model name to a provider.
// e.g., Alias("gpt-4o-mini", "openai") means "gpt-4o-mini" resolves to the "openai" provider.
func (r *Registry) Alias(model, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[model] = provider
}

// SetFallback sets the default provider used when no model/provider match is found.
func (r *Registry) SetFallback(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = provider
}

// Resolve returns the Client for a model reference and the model name to
// send to it. Resolution order: exact provider name, "provider/model",
// alias, fallback. An empty model name means the provider's default.
func (r *Registry) Resolve(ref string) (Client, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Direct provider name match
	if c, ok := r.clients[ref]; ok {
		return c, "", nil
	}

	// provider/model
	if provider, model, ok := strings.Cut(ref, "/"); ok {
		if c, ok := r.clients[provider]; ok {
			return c, model, nil
		}
	}

	// Alias lookup
	if provider, ok := r.aliases[ref]; ok {
		if c, ok := r.clients[provider]; ok {
			return c, ref, nil
		}
	}

	// Fallback
	if r.fallback != "" {
		if c, ok := r.clients[r.fallback]; ok {
			return c, ref, nil
		}
	}

	return nil, "", fmt.Errorf("no LLM provider for model %q", ref)
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// NewRegistryFromConfig registers one rate-limited OpenAI-compatible client
// per configured provider. The provider named by llm.model becomes the
// fallback; otherwise the first provider by name does.
func NewRegistryFromConfig(cfg config.LLMConfig, log *logging.Logger) *Registry {
	reg := NewRegistry(log)

	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		p := cfg.Providers[name]
		var defaultModel string
		if len(p.Models) > 0 {
			defaultModel = p.Models[0]
		}
		client := NewOpenAIClient(name, p.BaseURL, p.APIKey, defaultModel, cfg.Timeout)
		reg.Register(name, NewRateLimitedClient(client, cfg.RequestsPerSecond, cfg.Burst))
		for _, m := range p.Models {
			reg.Alias(m, name)
		}
	}

	if provider, _, ok := strings.Cut(cfg.Model, "/"); ok && slices.Contains(names, provider) {
		reg.SetFallback(provider)
	} else if len(names) > 0 {
		reg.SetFallback(names[0])
	}
	return reg
}

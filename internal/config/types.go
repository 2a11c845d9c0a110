package config

import "time"

// Config is the root configuration for sawt.
type Config struct {
	Gateway     GatewayConfig     `yaml:"gateway,omitempty" koanf:"gateway"`
	LLM         LLMConfig         `yaml:"llm,omitempty" koanf:"llm"`
	Agents      AgentsConfig      `yaml:"agents,omitempty" koanf:"agents"`
	Coordinator CoordinatorConfig `yaml:"coordinator,omitempty" koanf:"coordinator"`
	Store       StoreConfig       `yaml:"store,omitempty" koanf:"store"`
	Menu        MenuConfig        `yaml:"menu,omitempty" koanf:"menu"`
	Restaurant  RestaurantConfig  `yaml:"restaurant,omitempty" koanf:"restaurant"`
	Logging     LoggingConfig     `yaml:"logging,omitempty" koanf:"logging"`
	Hooks       HooksConfig       `yaml:"hooks,omitempty" koanf:"hooks"`
}

// GatewayConfig controls the HTTP/WebSocket gateway.
type GatewayConfig struct {
	Port           int         `yaml:"port,omitempty" koanf:"port"`
	Bind           string      `yaml:"bind,omitempty" koanf:"bind"` // "loopback" | "lan" | "custom"
	CustomBindHost string      `yaml:"customBindHost,omitempty" koanf:"custombindhost"`
	Auth           GatewayAuth `yaml:"auth,omitempty" koanf:"auth"`
	AllowedOrigins []string    `yaml:"allowedOrigins,omitempty" koanf:"allowedorigins"`
}

// GatewayAuth configures bearer token authentication.
type GatewayAuth struct {
	Token string `yaml:"token,omitempty" koanf:"token"`
}

// LLMConfig declares OpenAI-compatible providers and model routing.
type LLMConfig struct {
	Providers map[string]ProviderEntry `yaml:"providers,omitempty" koanf:"providers"`
	// Model is "provider/model" or a bare model alias.
	Model             string        `yaml:"model,omitempty" koanf:"model"`
	Fallbacks         []string      `yaml:"fallbacks,omitempty" koanf:"fallbacks"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond,omitempty" koanf:"requestspersecond"`
	Burst             int           `yaml:"burst,omitempty" koanf:"burst"`
	Timeout           time.Duration `yaml:"timeout,omitempty" koanf:"timeout"`
}

// ProviderEntry is one OpenAI-compatible endpoint.
type ProviderEntry struct {
	BaseURL string   `yaml:"baseUrl" koanf:"baseurl"`
	APIKey  string   `yaml:"apiKey,omitempty" koanf:"apikey"`
	Models  []string `yaml:"models,omitempty" koanf:"models"`
}

// AgentsConfig holds per-phase agent settings layered over defaults.
type AgentsConfig struct {
	Defaults AgentSettings `yaml:"defaults,omitempty" koanf:"defaults"`
	Greeting AgentSettings `yaml:"greeting,omitempty" koanf:"greeting"`
	Location AgentSettings `yaml:"location,omitempty" koanf:"location"`
	Order    AgentSettings `yaml:"order,omitempty" koanf:"order"`
	Checkout AgentSettings `yaml:"checkout,omitempty" koanf:"checkout"`
}

// AgentSettings tunes one phase agent.
type AgentSettings struct {
	Model       string   `yaml:"model,omitempty" koanf:"model"`
	Temperature *float64 `yaml:"temperature,omitempty" koanf:"temperature"`
	MaxTokens   int      `yaml:"maxTokens,omitempty" koanf:"maxtokens"`
	ExtraPrompt string   `yaml:"extraPrompt,omitempty" koanf:"extraprompt"`
}

// For returns the settings of a phase with unset fields taken from Defaults.
func (a AgentsConfig) For(phase string) AgentSettings {
	var s AgentSettings
	switch phase {
	case "greeting":
		s = a.Greeting
	case "location":
		s = a.Location
	case "order":
		s = a.Order
	case "checkout":
		s = a.Checkout
	}
	if s.Model == "" {
		s.Model = a.Defaults.Model
	}
	if s.Temperature == nil {
		s.Temperature = a.Defaults.Temperature
	}
	if s.MaxTokens == 0 {
		s.MaxTokens = a.Defaults.MaxTokens
	}
	if s.ExtraPrompt == "" {
		s.ExtraPrompt = a.Defaults.ExtraPrompt
	}
	return s
}

// CoordinatorConfig tunes turn handling.
type CoordinatorConfig struct {
	TurnTimeout   time.Duration `yaml:"turnTimeout,omitempty" koanf:"turntimeout"`
	LookupRetries int           `yaml:"lookupRetries,omitempty" koanf:"lookupretries"`
	RetryBackoff  time.Duration `yaml:"retryBackoff,omitempty" koanf:"retrybackoff"`
	ChainHandoffs bool          `yaml:"chainHandoffs,omitempty" koanf:"chainhandoffs"`
}

// StoreConfig selects the session store.
type StoreConfig struct {
	Driver string `yaml:"driver,omitempty" koanf:"driver"` // "sqlite" | "memory"
	Path   string `yaml:"path,omitempty" koanf:"path"`
}

// MenuConfig controls menu semantic search.
type MenuConfig struct {
	Embedder       string  `yaml:"embedder,omitempty" koanf:"embedder"` // "openai" | "hash"
	Provider       string  `yaml:"provider,omitempty" koanf:"provider"` // llm provider serving embeddings
	EmbeddingModel string  `yaml:"embeddingModel,omitempty" koanf:"embeddingmodel"`
	IndexPath      string  `yaml:"indexPath,omitempty" koanf:"indexpath"`
	MinScore       float64 `yaml:"minScore,omitempty" koanf:"minscore"`
	Limit          int     `yaml:"limit,omitempty" koanf:"limit"`
}

// RestaurantConfig describes the restaurant itself.
type RestaurantConfig struct {
	Name         string `yaml:"name,omitempty" koanf:"name"`
	Timezone     string `yaml:"timezone,omitempty" koanf:"timezone"`
	OpenHour     int    `yaml:"openHour,omitempty" koanf:"openhour"`
	CloseHour    int    `yaml:"closeHour,omitempty" koanf:"closehour"`
	PickupBranch string `yaml:"pickupBranch,omitempty" koanf:"pickupbranch"`
	Currency     string `yaml:"currency,omitempty" koanf:"currency"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty" koanf:"level"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty" koanf:"file"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty" koanf:"consolestyle"` // "pretty" | "compact" | "json"
}

// HooksConfig declares shell commands run on events.
type HooksConfig struct {
	TurnReceived   []HookEntry `yaml:"turnReceived,omitempty" koanf:"turnreceived"`
	PhaseChanged   []HookEntry `yaml:"phaseChanged,omitempty" koanf:"phasechanged"`
	OrderConfirmed []HookEntry `yaml:"orderConfirmed,omitempty" koanf:"orderconfirmed"`
	TurnFailed     []HookEntry `yaml:"turnFailed,omitempty" koanf:"turnfailed"`
	SessionReset   []HookEntry `yaml:"sessionReset,omitempty" koanf:"sessionreset"`
	GatewayStart   []HookEntry `yaml:"gatewayStart,omitempty" koanf:"gatewaystart"`
	GatewayStop    []HookEntry `yaml:"gatewayStop,omitempty" koanf:"gatewaystop"`
}

// HookEntry defines a single hook action.
type HookEntry struct {
	Command string `yaml:"command" koanf:"command"`
	Timeout int    `yaml:"timeout,omitempty" koanf:"timeout"` // milliseconds
}

// ByEvent maps hook event names to their entries.
func (h HooksConfig) ByEvent() map[string][]HookEntry {
	return map[string][]HookEntry{
		"turn_received":   h.TurnReceived,
		"phase_changed":   h.PhaseChanged,
		"order_confirmed": h.OrderConfirmed,
		"turn_failed":     h.TurnFailed,
		"session_reset":   h.SessionReset,
		"gateway_start":   h.GatewayStart,
		"gateway_stop":    h.GatewayStop,
	}
}

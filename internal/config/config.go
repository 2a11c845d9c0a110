package config

import (
	"fmt"
	"time"

	// restaurant.timezone must resolve on hosts without zoneinfo.
	_ "time/tzdata"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			Port: 18790,
			Bind: "loopback",
		},
		LLM: LLMConfig{
			RequestsPerSecond: 5,
			Burst:             5,
			Timeout:           60 * time.Second,
		},
		Agents: AgentsConfig{
			Defaults: AgentSettings{MaxTokens: 1024},
		},
		Coordinator: CoordinatorConfig{
			TurnTimeout:   90 * time.Second,
			LookupRetries: 2,
			RetryBackoff:  200 * time.Millisecond,
			ChainHandoffs: true,
		},
		Store: StoreConfig{
			Driver: "sqlite",
		},
		Menu: MenuConfig{
			Embedder:       "hash",
			EmbeddingModel: "text-embedding-3-small",
			MinScore:       0.3,
			Limit:          5,
		},
		Restaurant: RestaurantConfig{
			Name:         "صوت",
			Timezone:     "Asia/Riyadh",
			OpenHour:     9,
			CloseHour:    3,
			PickupBranch: "الفرع الرئيسي",
			Currency:     "SAR",
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}

package agent

import (
	"github.com/soyeahso/sawt/internal/config"
	"github.com/soyeahso/sawt/internal/domain"
	"github.com/soyeahso/sawt/internal/llm"
	"github.com/soyeahso/sawt/internal/logging"
)

// NewAgents builds one LLM-backed agent per active phase. Each phase uses its
// own model when configured and the llm.model default otherwise, with the
// configured fallbacks.
func NewAgents(cfg config.Config, registry *llm.Registry, log *logging.Logger) map[domain.Phase]Agent {
	agents := make(map[domain.Phase]Agent, len(domain.ActivePhases))
	for _, phase := range domain.ActivePhases {
		s := cfg.Agents.For(string(phase))
		model := s.Model
		if model == "" {
			model = cfg.LLM.Model
		}
		client := NewFailoverClient(registry, model, cfg.LLM.Fallbacks, log)
		agents[phase] = NewRunner(RunnerConfig{
			Phase:          phase,
			RestaurantName: cfg.Restaurant.Name,
			MaxTokens:      s.MaxTokens,
			Temperature:    s.Temperature,
			ExtraPrompt:    s.ExtraPrompt,
		}, client, log)
	}
	return agents
}

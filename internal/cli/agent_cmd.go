package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/sawt/internal/agent"
	"github.com/soyeahso/sawt/internal/config"
	"github.com/soyeahso/sawt/internal/domain"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Inspect the phase agents",
	}

	cmd.AddCommand(newAgentListCmd())
	cmd.AddCommand(newAgentInfoCmd())
	return cmd
}

// agentModel is the model a phase agent asks for first.
func agentModel(cfg config.Config, phase domain.Phase) string {
	if m := cfg.Agents.For(string(phase)).Model; m != "" {
		return m
	}
	return cfg.LLM.Model
}

func newAgentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the phase agents and their models",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				cfg = config.Defaults()
			}

			for _, phase := range domain.ActivePhases {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-10s model=%s\n", phase, agentModel(cfg, phase))
			}
			return nil
		},
	}
}

func newAgentInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info [phase]",
		Short: "Show settings and tools of a phase agent",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				cfg = config.Defaults()
			}

			var target domain.Phase
			if len(args) > 0 {
				target = domain.Phase(args[0])
			}

			out := cmd.OutOrStdout()
			found := false
			for _, phase := range domain.ActivePhases {
				if target != "" && phase != target {
					continue
				}
				found = true

				s := cfg.Agents.For(string(phase))
				tools := agent.ToolsFor(phase, agent.NewToolbox(domain.NewSession("", time.Now()), agent.Services{}))

				fmt.Fprintf(out, "Agent: %s\n", phase)
				fmt.Fprintf(out, "  Model:     %s\n", agentModel(cfg, phase))
				if len(cfg.LLM.Fallbacks) > 0 {
					fmt.Fprintf(out, "  Fallbacks: %s\n", strings.Join(cfg.LLM.Fallbacks, ", "))
				}
				fmt.Fprintf(out, "  MaxTokens: %d\n", s.MaxTokens)
				if s.Temperature != nil {
					fmt.Fprintf(out, "  Temp:      %.2f\n", *s.Temperature)
				}
				fmt.Fprintf(out, "  Tools:     %s\n", strings.Join(tools.Names(), ", "))
				if target == "" {
					fmt.Fprintln(out)
				}
			}

			if !found {
				return fmt.Errorf("no agent serves phase %q", target)
			}
			return nil
		},
	}
}

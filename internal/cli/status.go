package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soyeahso/sawt/internal/config"
	"github.com/soyeahso/sawt/internal/llm"
	"github.com/soyeahso/sawt/internal/version"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show sawt status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sawt %s (commit %s)\n\n", version.Version, version.Commit)

			// Show paths
			fmt.Fprintf(out, "Config:   %s\n", paths.Config)
			fmt.Fprintf(out, "Data:     %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:     %s\n", paths.Logs)
			fmt.Fprintln(out)

			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Fprintln(out, "Config:   not found (using defaults)")
			}
			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(out, "Config:   error loading: %v\n", err)
				return nil
			}

			auth := "none"
			if cfg.Gateway.Auth.Token != "" || os.Getenv("SAWT_GATEWAY_TOKEN") != "" {
				auth = "token"
			}
			fmt.Fprintf(out, "Gateway:  port=%d bind=%s auth=%s\n", cfg.Gateway.Port, cfg.Gateway.Bind, auth)

			storePath := cfg.Store.Path
			if storePath == "" {
				storePath = paths.Database
			}
			if cfg.Store.Driver == "memory" {
				storePath = "(in memory)"
			}
			fmt.Fprintf(out, "Store:    driver=%s path=%s\n", cfg.Store.Driver, storePath)
			fmt.Fprintf(out, "Menu:     embedder=%s minScore=%.2f limit=%d\n", cfg.Menu.Embedder, cfg.Menu.MinScore, cfg.Menu.Limit)
			fmt.Fprintf(out, "Shop:     %s tz=%s hours=%02d:00-%02d:00 currency=%s\n",
				cfg.Restaurant.Name, cfg.Restaurant.Timezone, cfg.Restaurant.OpenHour, cfg.Restaurant.CloseHour, cfg.Restaurant.Currency)

			// LLM providers
			registry := llm.NewRegistryFromConfig(cfg.LLM, log)
			providers := registry.List()
			if len(providers) > 0 {
				fmt.Fprintf(out, "LLM:      %s (model=%s)\n", strings.Join(providers, ", "), cfg.LLM.Model)
			} else {
				fmt.Fprintln(out, "LLM:      (none configured)")
			}

			hookCount := 0
			for _, entries := range cfg.Hooks.ByEvent() {
				hookCount += len(entries)
			}
			if hookCount > 0 {
				fmt.Fprintf(out, "Hooks:    %d\n", hookCount)
			}

			// Validation
			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}

package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/soyeahso/sawt/internal/mcpserver"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve ordering tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				return mcpserver.New(mcpserver.Deps{
					Turns:    a.coord,
					Menu:     a.index,
					Coverage: a.catalog,
					Catalog:  a.catalog,
					Orders:   a.catalog,
					Hours:    &a.hours,
				}, log).Serve()
			})
		},
	}
}

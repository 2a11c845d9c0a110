package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/soyeahso/sawt/internal/store"
)

func newMenuCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "menu",
		Short: "Manage the menu search index",
	}

	cmd.AddCommand(newMenuIndexCmd())
	cmd.AddCommand(newMenuSearchCmd())
	return cmd
}

func newMenuIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Rebuild the menu index from the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				n, err := a.reindex(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d items\n", n)
				return nil
			})
		},
	}
}

func newMenuSearchCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search the menu the way the order agent does",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				hits, err := a.index.Search(ctx, strings.Join(args, " "), category)
				if err != nil {
					return err
				}
				if len(hits) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No matches.")
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tPRICE\tAVAILABLE\tSCORE")
				for _, h := range hits {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%v\t%.2f\n", h.ItemID, h.Name, h.Price.StringFixed(2), h.Available, h.Score)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "restrict results to one category")
	return cmd
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load menu items, districts and promo codes from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sd, err := store.LoadSeedFile(args[0])
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app) error {
				res, err := a.catalog.Seed(ctx, sd)
				if err != nil {
					return err
				}
				n, err := a.reindex(ctx)
				if err != nil {
					return fmt.Errorf("rebuilding menu index: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d items, %d districts, %d promos (indexed %d)\n",
					res.Items, res.Districts, res.Promos, n)
				return nil
			})
		},
	}
}

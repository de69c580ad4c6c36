package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCategoriesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"category", "c"},
		Short:   "Look up product categories",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			categories, err := a.svc.ListCategories(ctx)
			if err != nil {
				return a.check(err)
			}

			if a.jsonOutput {
				return a.printJSON(cmd.OutOrStdout(), categories)
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatCategories(categories))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show one category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			c, err := a.svc.GetCategory(ctx, id)
			if err != nil {
				return a.check(err)
			}

			if a.jsonOutput {
				return a.printJSON(cmd.OutOrStdout(), c)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s%d\n", titleStyle.Render(c.Name), labelStyle.Render("ID"), c.ID)
			return nil
		},
	})

	return cmd
}

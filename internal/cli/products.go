package cli

import (
	"fmt"
	"strconv"

	"github.com/erauner12/catalog-admin/internal/apiclient"
	"github.com/erauner12/catalog-admin/internal/catalog"
	"github.com/spf13/cobra"
)

func newProductsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "products",
		Aliases: []string{"product", "p"},
		Short:   "List, inspect and edit products",
	}

	cmd.AddCommand(
		newProductsListCommand(a),
		newProductsGetCommand(a),
		newProductsCreateCommand(a),
		newProductsUpdateCommand(a),
		newProductsDeleteCommand(a),
	)
	return cmd
}

func newProductsListCommand(a *app) *cobra.Command {
	var (
		f                  catalog.Filter
		priceMin, priceMax float64
		sortColumn         string
		sortDirection      string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products with filters, sorting and paging",
		Long: `List one page of products.

Title and category filters and plain paging are handled by the API. Price
filters and sorting are applied locally over the full catalog, so they are
slower on large catalogs.`,
		Example: `  catalogctl products list --title shirt --page 2
  catalogctl products list --price-min 20 --price-max 100 --sort price --dir desc`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("price-min") {
				f.PriceMin = &priceMin
			}
			if cmd.Flags().Changed("price-max") {
				f.PriceMax = &priceMax
			}
			f.SortColumn = catalog.SortColumn(sortColumn)
			f.SortDirection = catalog.SortDirection(sortDirection)
			if f.SortColumn != catalog.SortNone && f.SortDirection == catalog.DirectionUnset {
				f.SortDirection = catalog.DirectionAsc
			}

			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			page, err := a.svc.ListProducts(ctx, f)
			if err != nil {
				return a.check(err)
			}

			if a.jsonOutput {
				return a.printJSON(cmd.OutOrStdout(), page)
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatProductPage(page, f.WithDefaults()))
			return nil
		},
	}

	cmd.Flags().StringVar(&f.Title, "title", "", "Filter by title (substring, case-insensitive)")
	cmd.Flags().IntVar(&f.CategoryID, "category", 0, "Filter by category ID")
	cmd.Flags().Float64Var(&priceMin, "price-min", 0, "Minimum price (inclusive)")
	cmd.Flags().Float64Var(&priceMax, "price-max", 0, "Maximum price (inclusive)")
	cmd.Flags().StringVar(&sortColumn, "sort", "", "Sort by title, price or category")
	cmd.Flags().StringVar(&sortDirection, "dir", "", "Sort direction: asc, desc or none (default asc with --sort)")
	cmd.Flags().IntVar(&f.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&f.PageSize, "page-size", catalog.DefaultPageSize, "Products per page")

	return cmd
}

func newProductsGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			p, err := a.svc.GetProduct(ctx, id)
			if err != nil {
				return a.check(err)
			}

			if a.jsonOutput {
				return a.printJSON(cmd.OutOrStdout(), p)
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatProduct(p))
			return nil
		},
	}
}

func newProductsCreateCommand(a *app) *cobra.Command {
	var in apiclient.CreateProductInput

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Create a product",
		Example: `  catalogctl products create --title "Desk Lamp" --price 40 --category 3 \
    --description "Warm light for late nights." --image https://i.imgur.com/lamp.jpeg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			p, err := a.svc.CreateProduct(ctx, in)
			if err != nil {
				return a.check(err)
			}

			if a.jsonOutput {
				return a.printJSON(cmd.OutOrStdout(), p)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s product %d\n\n%s\n", successStyle.Render("Created"), p.ID, formatProduct(p))
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Title, "title", "", "Title (3-100 characters)")
	cmd.Flags().Float64Var(&in.Price, "price", 0, "Price (greater than 0)")
	cmd.Flags().StringVar(&in.Description, "description", "", "Description (10-1000 characters)")
	cmd.Flags().IntVar(&in.CategoryID, "category", 0, "Category ID")
	cmd.Flags().StringSliceVar(&in.Images, "image", nil, "Image URL (repeat for up to 5)")

	return cmd
}

func newProductsUpdateCommand(a *app) *cobra.Command {
	var (
		title, description string
		price              float64
		categoryID         int
		images             []string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change some fields of a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var in apiclient.UpdateProductInput
			flags := cmd.Flags()
			if flags.Changed("title") {
				in.Title = &title
			}
			if flags.Changed("description") {
				in.Description = &description
			}
			if flags.Changed("price") {
				in.Price = &price
			}
			if flags.Changed("category") {
				in.CategoryID = &categoryID
			}
			if flags.Changed("image") {
				in.Images = images
			}

			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			p, err := a.svc.UpdateProduct(ctx, id, in)
			if err != nil {
				return a.check(err)
			}

			if a.jsonOutput {
				return a.printJSON(cmd.OutOrStdout(), p)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s product %d\n\n%s\n", successStyle.Render("Updated"), p.ID, formatProduct(p))
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().Float64Var(&price, "price", 0, "New price")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().IntVar(&categoryID, "category", 0, "New category ID")
	cmd.Flags().StringSliceVar(&images, "image", nil, "Replacement image URLs")

	return cmd
}

func newProductsDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			deleted, err := a.svc.DeleteProduct(ctx, id)
			if err != nil {
				return a.check(err)
			}

			if a.jsonOutput {
				return a.printJSON(cmd.OutOrStdout(), map[string]any{"id": id, "deleted": deleted})
			}
			if !deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "%s the API did not delete product %d\n", warningStyle.Render("Not deleted:"), id)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s product %d\n", successStyle.Render("Deleted"), id)
			return nil
		},
	}
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, &apiclient.ValidationError{Fields: map[string]string{"id": fmt.Sprintf("must be a positive integer, got %q", s)}}
	}
	return id, nil
}

package main

import (
	"errors"
	"fmt"
	"net/url"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"greenline/backend/internal/guard"
	"greenline/backend/internal/quote"
	"greenline/backend/internal/quote/domain"
	roledomain "greenline/backend/internal/role/domain"
)

var errForbidden = errors.New("not permitted in the current organization")

// Annotations of quotes subcommands. quoteRouteAnnotation marks commands whose first argument is
// a quote id, so the guard checks the quote's detail route; grantAnnotation names the action on
// quotes the command needs on top of reading.
const (
	quoteRouteAnnotation = "quote-route"
	grantAnnotation      = "grant"
)

func grant(action string) map[string]string { return map[string]string{grantAnnotation: action} }

// navigate runs the route guard for path and refuses anything but an allow decision.
func (c *cli) navigate(cmd *cobra.Command, path string) error {
	d, err := c.app.Guard.Navigate(cmd.Context(), path)
	if err != nil {
		return err
	}
	switch {
	case d.Outcome == guard.SignInRequired:
		return errSignedOut
	case !d.Allowed():
		return fmt.Errorf("%w: %s", errForbidden, path)
	}
	return nil
}

// authorizeQuotes runs the route guard for the command's quote route and checks its grant.
func (c *cli) authorizeQuotes(cmd *cobra.Command, args []string) error {
	if _, err := c.ensure(cmd.Context()); err != nil {
		return err
	}
	path := "/quotes"
	if cmd.Annotations[quoteRouteAnnotation] == "true" && len(args) > 0 {
		path += "/" + url.PathEscape(args[0])
	}
	if err := c.navigate(cmd, path); err != nil {
		return err
	}
	if action := cmd.Annotations[grantAnnotation]; action != "" && !c.app.Permissions.Can(roledomain.ResourceQuotes, action) {
		return fmt.Errorf("%w: requires %s:%s", errForbidden, roledomain.ResourceQuotes, action)
	}
	return nil
}

func quotesCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quotes",
		Short: "List the current organization's quotes",
		// Overrides the root hook; authorizeQuotes builds the application itself.
		PersistentPreRunE: c.authorizeQuotes,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.Quotes.LoadQuotes(cmd.Context()); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNUMBER\tCLIENT\tSTATUS\tTOTAL")
			for _, q := range c.app.Quotes.Quotes() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", q.ID, q.QuoteNumber, q.ClientName, q.Status, q.TotalAmount.StringFixed(2))
			}
			return w.Flush()
		},
	}
	cmd.AddCommand(quoteShowCmd(c), quoteCreateCmd(c), quoteAddItemCmd(c), quoteUpdateItemCmd(c), quoteDeleteItemCmd(c),
		quoteStatusCmd(c), quoteRecomputeCmd(c))
	return cmd
}

func printQuote(cmd *cobra.Command, q *domain.Quote, items []*domain.Item) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %s  %s\n", q.QuoteNumber, q.Status, q.ClientName)
	if q.ClientAddress != "" {
		fmt.Fprintln(out, q.ClientAddress)
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "ID\tTYPE\tNAME\tQTY\tUNIT\tTOTAL\t")
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n", it.ID, it.Type, it.Name, it.Quantity, it.UnitPrice.StringFixed(2), it.TotalPrice.StringFixed(2))
	}
	for _, row := range []struct {
		label string
		v     decimal.Decimal
	}{
		{"plants", q.PlantsCost}, {"materials", q.MaterialsCost}, {"labor", q.LaborCost}, {"other", q.OtherCost},
		{"subtotal", q.Subtotal}, {"tax " + q.TaxRate.String() + "%", q.TaxAmount}, {"total", q.TotalAmount},
	} {
		fmt.Fprintf(w, "\t\t\t\t%s\t%s\t\n", row.label, row.v.StringFixed(2))
	}
	return w.Flush()
}

func quoteShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:         "show <quote-id>",
		Short:       "Show a quote with its items and totals",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{quoteRouteAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := c.app.Quotes.LoadQuoteByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printQuote(cmd, q, c.app.Quotes.Items())
		},
	}
}

func quoteCreateCmd(c *cli) *cobra.Command {
	var in quote.NewQuote
	var tax string
	cmd := &cobra.Command{
		Use:         "create",
		Short:       "Create a draft quote for a client",
		Annotations: grant(roledomain.ActionCreate),
		RunE: func(cmd *cobra.Command, _ []string) error {
			rate, err := decimal.NewFromString(tax)
			if err != nil {
				return fmt.Errorf("invalid --tax %q: %w", tax, err)
			}
			in.TaxRate = rate
			q, err := c.app.Quotes.CreateQuote(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", q.QuoteNumber, q.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.ClientID, "client", "", "client id")
	cmd.Flags().StringVar(&in.ProjectName, "project", "", "project name")
	cmd.Flags().StringVar(&tax, "tax", "0", "tax rate in percent")
	_ = cmd.MarkFlagRequired("client")
	return cmd
}

func quoteAddItemCmd(c *cli) *cobra.Command {
	var typ, name, desc, qty, price string
	cmd := &cobra.Command{
		Use:         "add-item <quote-id>",
		Short:       "Add a line item and recompute the totals",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{quoteRouteAnnotation: "true", grantAnnotation: roledomain.ActionUpdate},
		RunE: func(cmd *cobra.Command, args []string) error {
			in := quote.NewItem{Type: domain.ItemType(typ), Name: name, Description: desc}
			var err error
			if in.Quantity, err = decimal.NewFromString(qty); err != nil {
				return fmt.Errorf("invalid --qty %q: %w", qty, err)
			}
			if in.UnitPrice, err = decimal.NewFromString(price); err != nil {
				return fmt.Errorf("invalid --price %q: %w", price, err)
			}
			it, err := c.app.Quotes.AddItem(cmd.Context(), args[0], in)
			if it != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s) total %s\n", it.Name, it.ID, it.TotalPrice.StringFixed(2))
			}
			return err
		},
	}
	cmd.Flags().StringVar(&typ, "type", string(domain.ItemOther), "plant, material, labor or other")
	cmd.Flags().StringVar(&name, "name", "", "item name")
	cmd.Flags().StringVar(&desc, "description", "", "item description")
	cmd.Flags().StringVar(&qty, "qty", "1", "quantity")
	cmd.Flags().StringVar(&price, "price", "0", "unit price")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func quoteUpdateItemCmd(c *cli) *cobra.Command {
	var typ, name, desc, qty, price string
	cmd := &cobra.Command{
		Use:         "update-item <item-id>",
		Short:       "Change a line item and recompute the totals",
		Args:        cobra.ExactArgs(1),
		Annotations: grant(roledomain.ActionUpdate),
		RunE: func(cmd *cobra.Command, args []string) error {
			var u domain.ItemUpdate
			flags := cmd.Flags()
			if flags.Changed("type") {
				t := domain.ItemType(typ)
				u.Type = &t
			}
			if flags.Changed("name") {
				u.Name = &name
			}
			if flags.Changed("description") {
				u.Description = &desc
			}
			if flags.Changed("qty") {
				d, err := decimal.NewFromString(qty)
				if err != nil {
					return fmt.Errorf("invalid --qty %q: %w", qty, err)
				}
				u.Quantity = &d
			}
			if flags.Changed("price") {
				d, err := decimal.NewFromString(price)
				if err != nil {
					return fmt.Errorf("invalid --price %q: %w", price, err)
				}
				u.UnitPrice = &d
			}
			it, err := c.app.Quotes.UpdateItem(cmd.Context(), args[0], u)
			if it != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "updated %s total %s\n", it.Name, it.TotalPrice.StringFixed(2))
			}
			return err
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "plant, material, labor or other")
	cmd.Flags().StringVar(&name, "name", "", "item name")
	cmd.Flags().StringVar(&desc, "description", "", "item description")
	cmd.Flags().StringVar(&qty, "qty", "", "quantity")
	cmd.Flags().StringVar(&price, "price", "", "unit price")
	return cmd
}

func quoteDeleteItemCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:         "delete-item <item-id>",
		Short:       "Remove a line item and recompute the totals",
		Args:        cobra.ExactArgs(1),
		Annotations: grant(roledomain.ActionUpdate),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Quotes.DeleteItem(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted")
			return nil
		},
	}
}

func quoteStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:         "status <quote-id> <draft|sent|accepted|rejected|expired>",
		Short:       "Change a quote's status",
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{quoteRouteAnnotation: "true", grantAnnotation: roledomain.ActionUpdate},
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := c.app.Quotes.UpdateQuoteStatus(cmd.Context(), args[0], domain.Status(args[1]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is %s\n", q.QuoteNumber, q.Status)
			return nil
		},
	}
}

func quoteRecomputeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:         "recompute <quote-id>",
		Short:       "Recompute a quote's totals from its items",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{quoteRouteAnnotation: "true", grantAnnotation: roledomain.ActionUpdate},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Quotes.RecomputeTotals(cmd.Context(), args[0]); err != nil {
				return err
			}
			q, err := c.app.Quotes.LoadQuoteByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printQuote(cmd, q, c.app.Quotes.Items())
		},
	}
}

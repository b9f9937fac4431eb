package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func canCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "can <resource> <action>",
		Short: "Check a permission in the current organization",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Permissions.Load(cmd.Context()); err != nil {
				return err
			}
			answer := "no"
			if c.app.Permissions.Can(args[0], args[1]) {
				answer = "yes"
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		},
	}
}

func routesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the routes and what they require",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPATH\tAUTH\tPERMISSIONS")
			for _, r := range c.app.Guard.Table().Routes() {
				auth := "-"
				switch {
				case r.RequiresAuth:
					auth = "required"
				case r.AuthPage:
					auth = "signed out"
				}
				perms := make([]string, len(r.Permissions))
				for i, p := range r.Permissions {
					perms[i] = p.String()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, r.Path, auth, strings.Join(perms, " | "))
			}
			return w.Flush()
		},
	}
}

func navigateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "navigate <path>",
		Short: "Run the route guard for a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := c.app.Guard.Navigate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if d.Allowed() {
				fmt.Fprintf(cmd.OutOrStdout(), "allow %s (%s)\n", d.Location, d.Route.Name)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: redirect to %s\n", d.Outcome, d.Location)
			return nil
		},
	}
}

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	orgdomain "greenline/backend/internal/organization/domain"
	roledomain "greenline/backend/internal/role/domain"
)

func orgsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orgs",
		Short: "List and manage the organizations you belong to",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireUser(c); err != nil {
				return err
			}
			return printOrgs(cmd, c)
		},
	}
	cmd.AddCommand(orgsUseCmd(c), orgsCreateCmd(c), orgsRenameCmd(c), orgsInviteCmd(c), orgsAcceptCmd(c))
	return cmd
}

func printOrgs(cmd *cobra.Command, c *cli) error {
	current := c.app.Tenancy.CurrentOrganizationID()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\tID\tNAME\tROLE")
	for _, o := range c.app.Tenancy.Organizations() {
		mark := ""
		if o.ID == current {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", mark, o.ID, o.Name, o.Role)
	}
	return w.Flush()
}

func orgsUseCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "use <organization-id>",
		Short: "Select the current organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(c); err != nil {
				return err
			}
			if !c.app.Tenancy.SetCurrentOrganization(cmd.Context(), args[0]) {
				return fmt.Errorf("you are not a member of organization %s", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "now using %s\n", c.app.Tenancy.OrganizationName())
			return nil
		},
	}
}

func orgsCreateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create an organization you own and select it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(c); err != nil {
				return err
			}
			o, err := c.app.Tenancy.CreateOrganization(cmd.Context(), args[0], c.app.Session.CurrentUserID())
			if o != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", o.Name, o.ID)
			}
			return err
		},
	}
}

func orgsRenameCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <name>",
		Short: "Rename the current organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(c); err != nil {
				return err
			}
			name := args[0]
			o, err := c.app.Tenancy.UpdateOrganization(cmd.Context(), orgdomain.Update{Name: &name})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "renamed to %s\n", o.Name)
			return nil
		},
	}
}

func orgsInviteCmd(c *cli) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "invite <email>",
		Short: "Invite someone to the current organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(c); err != nil {
				return err
			}
			inv, err := c.app.Tenancy.InviteTeamMember(cmd.Context(), args[0], roledomain.Name(role))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "invited %s as %s (invitation %s)\n", inv.Email, inv.Role, inv.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", string(roledomain.Member), "role granted on acceptance")
	return cmd
}

func orgsAcceptCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "accept <invitation-id>",
		Short: "Accept an invitation as the signed-in user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(c); err != nil {
				return err
			}
			m, err := c.app.Tenancy.AcceptInvitation(cmd.Context(), args[0], c.app.Session.CurrentUserID())
			if m != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "joined %s as %s\n", m.OrgID, m.Role)
			}
			return err
		},
	}
}

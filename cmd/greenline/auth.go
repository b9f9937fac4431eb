package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"greenline/backend/internal/auth"
)

func signUpCmd(c *cli) *cobra.Command {
	var email, password, org, name string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and its first organization",
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := c.app.Session.SignUp(cmd.Context(), email, password, org, name)
			if u != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "signed up %s (%s)\n", u.Email, u.ID)
			}
			if err != nil {
				return err
			}
			if o := c.app.Tenancy.Current(); o != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "organization %s (%s)\n", o.Name, o.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().StringVar(&org, "org", "", "name of the organization to create")
	cmd.Flags().StringVar(&name, "name", "", "full name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func signInCmd(c *cli) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in with email and password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := c.app.Session.SignIn(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", s.User.Email)
			if o := c.app.Tenancy.Current(); o != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "organization %s (%s)\n", o.Name, o.Role)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func oauthCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "oauth <provider>",
		Short: "Print the authorize URL for an OAuth sign-in (google, github)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := c.app.Session.SignInWithOAuth(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), r.URL)
			return nil
		},
	}
}

func signOutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out and forget the selected organization",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.Session.SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func whoAmICmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user, organization and role",
		RunE: func(cmd *cobra.Command, _ []string) error {
			u := c.app.Session.User()
			if u == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "signed out")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s (%s)\n", u.Email, u.ID)
			o := c.app.Tenancy.Current()
			if o == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no organization")
				return nil
			}
			if err := c.app.Permissions.Load(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "organization %s (%s) role %s\n", o.Name, o.ID, c.app.Permissions.RoleName())
			return nil
		},
	}
}

func resetPasswordCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password <email>",
		Short: "Send a password reset link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Session.ResetPassword(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "reset link sent")
			return nil
		},
	}
}

// recoverer is implemented by providers that verify reset tokens themselves.
type recoverer interface {
	VerifyRecovery(ctx context.Context, token string) (*auth.Session, error)
}

func recoverCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "recover <token>",
		Short: "Sign in with a password reset token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, ok := c.app.Auth.(recoverer)
			if !ok {
				return errors.New("the configured auth provider sends its own recovery links")
			}
			s, err := r.VerifyRecovery(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			email := ""
			if s.User != nil {
				email = s.User.Email
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in %s; choose a new password with: password <new-password>\n", email)
			return nil
		},
	}
}

func passwordCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "password <new-password>",
		Short: "Change the signed-in user's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(c); err != nil {
				return err
			}
			if _, err := c.app.Session.UpdatePassword(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "password updated")
			return nil
		},
	}
}

package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"greenline/backend/internal/app"
	"greenline/backend/internal/config"
)

// cli carries the application across commands. It is built on first use so that help and
// completion never touch the store or the auth provider.
type cli struct {
	app *app.App
}

func (c *cli) ensure(ctx context.Context) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := a.Start(ctx); err != nil {
		logger.Warn("greenline: continuing signed out", zap.Error(err))
	}
	c.app = a
	return a, nil
}

func (c *cli) close(ctx context.Context) error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close(ctx)
	c.app = nil
	return err
}

var errSignedOut = errors.New("not signed in; run greenline signin")

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "greenline",
		Short:         "Greenline authorization, tenancy and quote core",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations["offline"] == "true" {
				return nil
			}
			_, err := c.ensure(cmd.Context())
			return err
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}
	root.AddCommand(
		signUpCmd(c), signInCmd(c), oauthCmd(c), signOutCmd(c), whoAmICmd(c), resetPasswordCmd(c), recoverCmd(c), passwordCmd(c),
		orgsCmd(c),
		canCmd(c), routesCmd(c), navigateCmd(c),
		quotesCmd(c), docsCmd(c),
		shellCmd(c),
	)
	return root
}

// requireUser fails commands that need a signed-in user.
func requireUser(c *cli) error {
	if !c.app.Session.IsAuthenticated() {
		return errSignedOut
	}
	return nil
}

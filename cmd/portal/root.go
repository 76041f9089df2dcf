package main

import (
	"context"
	"errors"
	"io"

	"github.com/aussiebroadwan/portal/internal/portal/app"
	"github.com/aussiebroadwan/portal/internal/portal/service"
	"github.com/aussiebroadwan/portal/pkg/apiclient"
	"github.com/aussiebroadwan/portal/pkg/slogx"
	"github.com/spf13/cobra"
)

var errNotLoggedIn = errors.New("not logged in, run `portal login` first")

// cli carries state shared by every command of one invocation.
type cli struct {
	configPath string
	jsonOut    bool

	app *app.Application
}

// run executes one invocation of the command tree and reports any error on
// stderr.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	c := &cli{}
	defer func() { _ = c.close() }()

	root := c.rootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err != nil {
		printError(stderr, err)
	}
	return err
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "portal",
		Short:         "Patient portal client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd)
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to a YAML config file (default: environment only)")
	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "print results as JSON")

	root.AddCommand(
		c.loginCmd(),
		c.registerCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.dashboardCmd(),
		c.appointmentsCmd(),
		c.recordsCmd(),
		c.prescriptionsCmd(),
		c.profileCmd(),
	)
	return root
}

func (c *cli) open(cmd *cobra.Command) error {
	cfg, err := app.LoadConfig(c.configPath)
	if err != nil {
		return err
	}

	application, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	c.app = application

	ctx := slogx.WithContext(cmd.Context(), application.Logger())
	cmd.SetContext(slogx.WithCommand(ctx, cmd.CommandPath()))
	return nil
}

func (c *cli) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}

// requireSession fails early when no session is stored.
func (c *cli) requireSession() error {
	_, err := c.app.Session.CurrentUser()
	if errors.Is(err, service.ErrNotLoggedIn) {
		return errNotLoggedIn
	}
	return err
}

// sessionExpired reports whether err means the user has to log in again.
func sessionExpired(err error) bool {
	return apiclient.IsAuthExpired(err) || errors.Is(err, errNotLoggedIn)
}

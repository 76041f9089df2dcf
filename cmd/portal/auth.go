package main

import (
	"bufio"
	"fmt"
	"time"

	"github.com/aussiebroadwan/portal/internal/portal/domain"
	"github.com/spf13/cobra"
)

func (c *cli) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [username]",
		Short: "Log in and store the session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			var username string
			if len(args) == 1 {
				username = args[0]
			} else {
				var err error
				if username, err = prompt(in, out, "Username"); err != nil {
					return err
				}
			}

			password, err := promptPassword(in, out)
			if err != nil {
				return err
			}

			if _, err := c.app.Session.Login(cmd.Context(), username, password); err != nil {
				return err
			}

			fmt.Fprintf(out, "Logged in as %s.\n", username)
			return nil
		},
	}
}

func (c *cli) registerCmd() *cobra.Command {
	var req domain.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a patient account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			var err error
			if req.Username == "" {
				if req.Username, err = prompt(in, out, "Username"); err != nil {
					return err
				}
			}
			if req.Password, err = promptPassword(in, out); err != nil {
				return err
			}

			resp, err := c.app.Session.Register(cmd.Context(), req)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Registered %s. You can now log in.\n", resp.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Username, "username", "", "account username")
	cmd.Flags().StringVar(&req.Email, "email", "", "contact email")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.Session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}
			user, err := c.app.Session.CurrentUser()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if c.jsonOut {
				return writeJSON(out, user)
			}

			fmt.Fprintf(out, "%s (id %d)\n", user.Username, user.ID)
			if !user.ExpiresAt.IsZero() {
				left := time.Until(user.ExpiresAt).Round(time.Second)
				if left > 0 {
					fmt.Fprintf(out, "access token valid for %s\n", left)
				} else {
					fmt.Fprintln(out, "access token expired, it will be refreshed on the next request")
				}
			}
			return nil
		},
	}
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func (c *cli) registerCmd() *cobra.Command {
	var email, pass, name string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			if err := c.ws.Register(ctx, email, password(pass), name); err != nil {
				return err
			}
			printIdentity(cmd.OutOrStdout(), c.ws.Session.State())
			return nil
		}),
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&pass, "password", "p", "", "Account password (or set "+envPassword+")")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name shown on posts")
	cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) loginCmd() *cobra.Command {
	var email, pass string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with email and password",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			if err := c.ws.Login(ctx, email, password(pass)); err != nil {
				return err
			}
			printIdentity(cmd.OutOrStdout(), c.ws.Session.State())
			return nil
		}),
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&pass, "password", "p", "", "Account password (or set "+envPassword+")")
	cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			return c.ws.Logout(ctx)
		}),
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity of the current session",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			state := c.ws.Session.State()
			if state.Identity == nil {
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("Not logged in"))
				return nil
			}
			printIdentity(cmd.OutOrStdout(), state)
			return nil
		}),
	}
}

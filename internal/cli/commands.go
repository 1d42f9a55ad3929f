package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"taskshare/internal/auth"
	"taskshare/internal/model"
)

func newMigrateCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, newLogger(cmd.ErrOrStderr(), cfg.LogLevel))
			if err != nil {
				return err
			}
			defer a.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", a.db.Dialector.Name())
			return nil
		},
	}
}

func newSweepCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Deactivate expired invitations once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, newLogger(cmd.ErrOrStderr(), cfg.LogLevel))
			if err != nil {
				return err
			}
			defer a.Close()
			n, err := a.directory.SweepExpiredInvitations(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deactivated %d invitation(s)\n", n)
			return nil
		},
	}
}

func newTokenCommand(flags *globalFlags) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user (id or email)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if user == "" {
				return errors.New("--user is required")
			}
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if err := cfg.RequireSecret(); err != nil {
				return err
			}
			tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.JWTIssuer)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, newLogger(cmd.ErrOrStderr(), cfg.LogLevel))
			if err != nil {
				return err
			}
			defer a.Close()

			var found *model.User
			if id, perr := strconv.ParseUint(user, 10, 0); perr == nil {
				found, err = a.users.FindByID(cmd.Context(), uint(id))
			} else {
				found, err = a.users.FindByEmail(cmd.Context(), user)
			}
			if err != nil {
				return err
			}
			token, err := tokens.Issue(found.ID, found.Email)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "User id or email")
	return cmd
}

func newUserCommand(flags *globalFlags) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	var email, name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(email) == "" {
				return errors.New("--email is required")
			}
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, newLogger(cmd.ErrOrStderr(), cfg.LogLevel))
			if err != nil {
				return err
			}
			defer a.Close()
			u, err := a.users.Create(cmd.Context(), email, name, "")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %d <%s>\n", u.ID, u.Email)
			return nil
		},
	}
	create.Flags().StringVar(&email, "email", "", "Account email")
	create.Flags().StringVar(&name, "name", "", "Display name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, newLogger(cmd.ErrOrStderr(), cfg.LogLevel))
			if err != nil {
				return err
			}
			defer a.Close()
			users, err := a.users.ListAll(cmd.Context())
			if err != nil {
				return err
			}
			for _, u := range users {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", u.ID, u.Email, u.Name)
			}
			return nil
		},
	}

	userCmd.AddCommand(create, list)
	return userCmd
}

package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"carteira/internal/auth"
)

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage login accounts",
	}
	cmd.AddCommand(usersAddCmd())
	cmd.AddCommand(usersListCmd())
	return cmd
}

func usersAddCmd() *cobra.Command {
	var (
		password string
		admin    bool
	)
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("CARTEIRA_PASSWORD")
			}
			if password == "" {
				return errors.New("a password is required (--password or CARTEIRA_PASSWORD)")
			}
			dir := auth.NewDirectory(appConfig.UsersFile, auth.WithDirectoryLogger(logger))
			if err := dir.AddUser(cmd.Context(), args[0], password, admin); err != nil {
				return fmt.Errorf("add user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %s created\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "initial password (at least 8 characters)")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant administrator access")
	return cmd
}

func usersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir := auth.NewDirectory(appConfig.UsersFile)
			users, err := dir.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list users: %w", err)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "USER\tADMIN\tCREATED")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%t\t%s\n", u.Name, u.IsAdmin, u.CreatedAt)
			}
			return w.Flush()
		},
	}
}

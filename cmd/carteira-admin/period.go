package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"carteira/internal/core"
	"carteira/internal/ledger"
	"carteira/internal/storage"
)

func periodCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "period",
		Short: "Inspect reporting periods",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <user>",
		Short: "Show a user's open period and report counter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user := args[0]
			if err := storage.ValidateUser(user); err != nil {
				return err
			}
			repo, err := openRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer closeRepository(repo)

			st, ok, err := repo.LoadPeriod(cmd.Context(), user)
			if err != nil {
				return fmt.Errorf("load period: %w", err)
			}
			if !ok {
				st = ledger.DefaultState()
			}
			today := core.DateOf(time.Now().In(appConfig.Location()))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "User:    %s\n", user)
			fmt.Fprintf(out, "Period:  %s\n", st.Period.Label())
			fmt.Fprintf(out, "Next:    %s\n", core.ReportNumber(st.Counter))
			fmt.Fprintf(out, "Late:    %t\n", st.Period.IsLate(today))
			if !ok {
				fmt.Fprintln(out, "(not started yet, default period shown)")
			}
			return nil
		},
	})
	return cmd
}

package main

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"carteira/internal/core"
	"carteira/internal/export"
	"carteira/internal/storage"
)

func reportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Inspect and export archived reports",
	}
	cmd.AddCommand(reportsListCmd())
	cmd.AddCommand(reportsExportCmd())
	return cmd
}

func reportsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <user>",
		Short: "List a user's archived reports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := loadHistory(cmd, args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "REPORT\tPERIOD\tSUBMITTED\tTXS\tNET")
			for _, r := range history {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					r.Number, r.PeriodLabel, r.SubmittedOn.Display(), len(r.Transactions), r.Summary.Net)
			}
			return w.Flush()
		},
	}
}

func reportsExportCmd() *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export <user> <seq>",
		Short: "Export one report as PDF or CSV",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seq, err := strconv.Atoi(args[1])
			if err != nil || seq < 1 {
				return fmt.Errorf("invalid report number %q", args[1])
			}
			history, err := loadHistory(cmd, args[0])
			if err != nil {
				return err
			}
			report, ok := core.FindReport(history, seq)
			if !ok {
				return fmt.Errorf("%s not found for %s", core.ReportNumber(seq), args[0])
			}

			var buf bytes.Buffer
			switch format {
			case "pdf":
				err = export.WriteReportPDF(&buf, args[0], report)
			case "csv":
				err = export.WriteCSV(&buf, report.Transactions)
			default:
				return fmt.Errorf("unknown format %q (pdf or csv)", format)
			}
			if err != nil {
				return fmt.Errorf("render %s: %w", report.Number, err)
			}

			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s written to %s\n", report.Number, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "pdf", "output format (pdf, csv)")
	cmd.Flags().StringVar(&out, "out", "", "output file (stdout when empty)")
	return cmd
}

func loadHistory(cmd *cobra.Command, user string) ([]core.Report, error) {
	if err := storage.ValidateUser(user); err != nil {
		return nil, err
	}
	repo, err := openRepository(cmd.Context())
	if err != nil {
		return nil, err
	}
	defer closeRepository(repo)

	history, err := repo.LoadHistory(cmd.Context(), user)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return history, nil
}

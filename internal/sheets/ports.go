package sheets

import (
	"context"
	"strconv"

	"carteira/internal/core"
)

// Ports for outbound adapters.
type (
	// ReportWriter appends one archived report as a spreadsheet row.
	ReportWriter interface {
		AppendReport(ctx context.Context, owner string, r core.Report) (rowRef string, err error)
	}

	// ReportIndex tells whether a report was already exported, so a
	// redelivered event does not add a second row.
	ReportIndex interface {
		HasReport(ctx context.Context, owner string, r core.Report) (bool, error)
	}

	ReportSink interface {
		ReportWriter
		ReportIndex
	}
)

// Header is the first row of the reports sheet.
var Header = []string{
	"Key", "User", "Report", "Period start", "Period end", "Submitted",
	"Income", "Expense", "Net", "Position", "Transactions",
}

// RowKey identifies a report across users.
func RowKey(owner string, sequence int) string {
	return owner + "#" + strconv.Itoa(sequence)
}

// Row renders r in Header order. Amounts are plain decimals so the sheet
// can sum them.
func Row(owner string, r core.Report) []any {
	return []any{
		RowKey(owner, r.Sequence),
		owner,
		r.Number,
		r.Period.Start.String(),
		r.Period.End.String(),
		r.SubmittedOn.String(),
		r.Summary.TotalIncome.Decimal().StringFixed(2),
		r.Summary.TotalExpense.Decimal().StringFixed(2),
		r.Summary.Net.Decimal().StringFixed(2),
		r.Summary.Position().String(),
		len(r.Transactions),
	}
}

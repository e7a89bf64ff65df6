package core

import "fmt"

// Report is the frozen snapshot of one submitted period.
type Report struct {
	Sequence     int
	Number       string
	Period       Period
	PeriodLabel  string
	SubmittedOn  Date
	Transactions []Transaction
	Summary      Summary
}

// ReportNumber formats the display number for a report sequence.
func ReportNumber(seq int) string {
	return fmt.Sprintf("Report %d", seq)
}

// NewReport snapshots txs into a report. The slice is copied.
func NewReport(seq int, p Period, submittedOn Date, txs []Transaction) Report {
	snapshot := make([]Transaction, len(txs))
	copy(snapshot, txs)
	return Report{
		Sequence:     seq,
		Number:       ReportNumber(seq),
		Period:       p,
		PeriodLabel:  p.Label(),
		SubmittedOn:  submittedOn,
		Transactions: snapshot,
		Summary:      Summarize(snapshot),
	}
}

// FindReport returns the report with the given sequence.
func FindReport(history []Report, seq int) (Report, bool) {
	for _, r := range history {
		if r.Sequence == seq {
			return r, true
		}
	}
	return Report{}, false
}

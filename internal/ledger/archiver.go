package ledger

import (
	"errors"
	"fmt"

	"carteira/internal/core"
)

// EarliestSubmissionDate is the end of the first week reports exist for.
var EarliestSubmissionDate = core.NewDate(2025, 2, 9)

var (
	ErrFuturePeriod    = errors.New("period has not ended yet")
	ErrBeforeInception = errors.New("period ends before the earliest allowed submission date")
)

// PreconditionError explains why a period cannot be submitted yet.
type PreconditionError struct {
	Reason error
	Period core.Period
	Today  core.Date
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("cannot submit %s on %s: %v", e.Period.Label(), e.Today.Display(), e.Reason)
}

func (e *PreconditionError) Unwrap() error { return e.Reason }

// Archive is the outcome of a submission, not yet persisted.
type Archive struct {
	Report    core.Report
	Remaining []core.Transaction
	Next      core.PeriodState
}

// CheckSubmission returns a PreconditionError if p may not be submitted
// on today. Checks run in a fixed order.
func CheckSubmission(p core.Period, today core.Date) error {
	if p.End.After(today) {
		return &PreconditionError{Reason: ErrFuturePeriod, Period: p, Today: today}
	}
	if p.End.Before(EarliestSubmissionDate) {
		return &PreconditionError{Reason: ErrBeforeInception, Period: p, Today: today}
	}
	return nil
}

// Submit archives the transactions dated inside the active period. It is
// pure: the caller decides when the result becomes visible. Transactions
// without a usable date are never archived.
func Submit(txs []core.Transaction, st core.PeriodState, today core.Date) (Archive, error) {
	period := st.Period
	if err := CheckSubmission(period, today); err != nil {
		return Archive{}, err
	}

	store := NewStore(txs)
	inPeriod := store.RemoveMatching(func(tx core.Transaction) bool {
		return period.Contains(tx.Date)
	})

	report := core.NewReport(st.Counter, period, today, inPeriod)

	cycle := NewCycle(st)
	cycle.incrementCounter()
	cycle.Advance()

	return Archive{
		Report:    report,
		Remaining: store.All(),
		Next:      cycle.State(),
	}, nil
}

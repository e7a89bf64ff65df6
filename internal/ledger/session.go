package ledger

import (
	"time"

	"carteira/internal/core"
)

// Session is the working state of one user: who they are, which period
// is open, what is still live and what has been archived. It is loaded
// by Service.Open and passed explicitly into every operation.
type Session struct {
	Identity     core.Identity
	Cycle        *Cycle
	Transactions *Store
	History      []core.Report
}

func (s *Session) User() string { return s.Identity.User }

func (s *Session) Period() core.Period { return s.Cycle.Current() }

// Balance summarises the live transactions.
func (s *Session) Balance() core.Summary {
	return core.Summarize(s.Transactions.All())
}

// Status is the dashboard view of a session on a given day.
type Status struct {
	Period      core.Period
	Counter     int
	Late        bool
	WeeksBehind int
	Balance     core.Summary
	Position    core.Position
	Pending     int
	Reports     int
}

// StatusOn reports the session as of today. WeeksBehind counts whole
// weeks between the open period and today's week.
func (s *Session) StatusOn(today core.Date) Status {
	p := s.Period()
	bal := s.Balance()
	st := Status{
		Period:   p,
		Counter:  s.Cycle.Counter(),
		Late:     p.IsLate(today),
		Balance:  bal,
		Position: bal.Position(),
		Pending:  s.Transactions.Len(),
		Reports:  len(s.History),
	}
	if st.Late {
		days := core.WeekOf(today).Start.Sub(p.Start.Time) / (24 * time.Hour)
		st.WeeksBehind = int(days) / core.PeriodDays
	}
	return st
}

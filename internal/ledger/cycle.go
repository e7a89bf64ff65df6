package ledger

import "carteira/internal/core"

// DefaultPeriodStart is the first week every new user starts in.
var DefaultPeriodStart = core.NewDate(2025, 2, 3)

// DefaultState is the bootstrap cycle: the first week, counter 1.
func DefaultState() core.PeriodState {
	return core.PeriodState{Period: core.NewPeriod(DefaultPeriodStart), Counter: 1}
}

// RestoreState rebuilds the cycle for a user whose period record is
// missing. With no history it is DefaultState; otherwise it resumes on the
// week after the highest-numbered report, with the next sequence.
func RestoreState(history []core.Report) core.PeriodState {
	st := DefaultState()
	for _, r := range history {
		if r.Sequence < st.Counter {
			continue
		}
		st.Counter = r.Sequence + 1
		if r.Period.Validate() == nil {
			st.Period = r.Period.Next()
		}
	}
	return st
}

// Cycle tracks the active period and the next report number.
type Cycle struct {
	state core.PeriodState
}

func NewCycle(st core.PeriodState) *Cycle {
	return &Cycle{state: st}
}

func (c *Cycle) Current() core.Period { return c.state.Period }

func (c *Cycle) Counter() int { return c.state.Counter }

func (c *Cycle) State() core.PeriodState { return c.state }

// Advance moves to the following week. The counter is left alone; it is
// bumped by the submission that triggers the advance.
func (c *Cycle) Advance() {
	c.state.Period = c.state.Period.Next()
}

func (c *Cycle) incrementCounter() {
	c.state.Counter++
}

package core

import "fmt"

// PeriodDays is the length of a reporting window.
const PeriodDays = 7

// Period is an inclusive Monday-to-Sunday reporting window.
type Period struct {
	Start Date
	End   Date
}

// PeriodState is the persisted reporting cycle of one user.
type PeriodState struct {
	Period  Period
	Counter int // sequence number the next report will get
}

// NewPeriod returns the 7-day window starting at start.
func NewPeriod(start Date) Period {
	return Period{Start: start, End: start.AddDays(PeriodDays - 1)}
}

// WeekOf returns the Monday-to-Sunday week containing d.
func WeekOf(d Date) Period {
	offset := (int(d.Weekday()) + 6) % 7 // Monday=0
	return NewPeriod(d.AddDays(-offset))
}

func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return fmt.Errorf("%w: missing bounds", ErrInvalidPeriod)
	}
	if !p.End.Equal(p.Start.AddDays(PeriodDays - 1)) {
		return fmt.Errorf("%w: %s..%s is not a 7-day span", ErrInvalidPeriod, p.Start, p.End)
	}
	return nil
}

// Contains reports whether d falls inside the window. Zero dates never do.
func (p Period) Contains(d Date) bool {
	if d.IsZero() {
		return false
	}
	return !d.Before(p.Start) && !d.After(p.End)
}

// Next returns the window that immediately follows p.
func (p Period) Next() Period {
	return NewPeriod(p.End.AddDays(1))
}

// IsLate reports whether the window closed before today.
func (p Period) IsLate(today Date) bool {
	return today.After(p.End)
}

// Label renders the window as "De dd/mm/yyyy a dd/mm/yyyy".
func (p Period) Label() string {
	return fmt.Sprintf("De %s a %s", p.Start.Display(), p.End.Display())
}

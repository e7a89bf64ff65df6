package http

import (
	"carteira/internal/core"
	"carteira/internal/ledger"
	"carteira/internal/rules"
)

type transactionView struct {
	ID          string        `json:"id"`
	Date        string        `json:"date"`
	Type        core.TxType   `json:"type"`
	Category    core.Category `json:"category"`
	Label       string        `json:"label"`
	Description string        `json:"description"`
	Amount      core.Money    `json:"amount"`
}

func viewTransaction(tx core.Transaction) transactionView {
	date := tx.RawDate
	if tx.HasDate() {
		date = tx.Date.String()
	}
	return transactionView{
		ID:          tx.ID,
		Date:        date,
		Type:        tx.Type,
		Category:    tx.Category,
		Label:       tx.Category.Label(),
		Description: tx.Description,
		Amount:      tx.Amount,
	}
}

func viewTransactions(txs []core.Transaction) []transactionView {
	out := make([]transactionView, len(txs))
	for i, tx := range txs {
		out[i] = viewTransaction(tx)
	}
	return out
}

type summaryView struct {
	TotalIncome  core.Money `json:"total_income"`
	TotalExpense core.Money `json:"total_expense"`
	Net          core.Money `json:"net"`
	Position     string     `json:"position"`
}

func viewSummary(s core.Summary) summaryView {
	return summaryView{
		TotalIncome:  s.TotalIncome,
		TotalExpense: s.TotalExpense,
		Net:          s.Net,
		Position:     s.Position().String(),
	}
}

type periodView struct {
	Start core.Date `json:"start"`
	End   core.Date `json:"end"`
	Label string    `json:"label"`
}

func viewPeriod(p core.Period) periodView {
	return periodView{Start: p.Start, End: p.End, Label: p.Label()}
}

type statusView struct {
	Period      periodView  `json:"period"`
	Counter     int         `json:"counter"`
	Today       core.Date   `json:"today"`
	Late        bool        `json:"late"`
	WeeksBehind int         `json:"weeks_behind"`
	Pending     int         `json:"pending"`
	Reports     int         `json:"reports"`
	Balance     summaryView `json:"balance"`
}

func viewStatus(st ledger.Status, today core.Date) statusView {
	return statusView{
		Period:      viewPeriod(st.Period),
		Counter:     st.Counter,
		Today:       today,
		Late:        st.Late,
		WeeksBehind: st.WeeksBehind,
		Pending:     st.Pending,
		Reports:     st.Reports,
		Balance:     viewSummary(st.Balance),
	}
}

type reportView struct {
	Sequence     int               `json:"sequence"`
	Number       string            `json:"number"`
	Period       periodView        `json:"period"`
	SubmittedOn  core.Date         `json:"submitted_on"`
	Summary      summaryView       `json:"summary"`
	Transactions []transactionView `json:"transactions,omitempty"`
}

// viewReport renders r. Transactions are only listed when full is set.
func viewReport(r core.Report, full bool) reportView {
	v := reportView{
		Sequence:    r.Sequence,
		Number:      r.Number,
		Period:      periodView{Start: r.Period.Start, End: r.Period.End, Label: r.PeriodLabel},
		SubmittedOn: r.SubmittedOn,
		Summary:     viewSummary(r.Summary),
	}
	if full {
		v.Transactions = viewTransactions(r.Transactions)
	}
	return v
}

func viewHistory(history []core.Report) []reportView {
	out := make([]reportView, len(history))
	for i, r := range history {
		out[i] = viewReport(r, false)
	}
	return out
}

type overviewView struct {
	User          string      `json:"user"`
	Period        periodView  `json:"period"`
	Late          bool        `json:"late"`
	Pending       int         `json:"pending"`
	Live          summaryView `json:"live"`
	Reports       int         `json:"reports"`
	LastReport    string      `json:"last_report,omitempty"`
	LastSubmitted *core.Date  `json:"last_submitted,omitempty"`
}

func viewOverview(rows []ledger.UserOverview) []overviewView {
	out := make([]overviewView, len(rows))
	for i, row := range rows {
		v := overviewView{
			User:       row.User,
			Period:     viewPeriod(row.Period),
			Late:       row.Late,
			Pending:    row.Pending,
			Live:       viewSummary(row.Live),
			Reports:    row.Reports,
			LastReport: row.LastReport,
		}
		if !row.LastSubmitted.IsZero() {
			d := row.LastSubmitted
			v.LastSubmitted = &d
		}
		out[i] = v
	}
	return out
}

type categoryView struct {
	Key   core.Category `json:"key"`
	Label string        `json:"label"`
}

type roleView struct {
	Key   rules.Role `json:"key"`
	Label string     `json:"label"`
	Rate  core.Money `json:"rate"`
}

type mealTypeView struct {
	Key   rules.MealType `json:"key"`
	Label string         `json:"label"`
}

type catalogView struct {
	Expense          []categoryView `json:"expense"`
	Income           []categoryView `json:"income"`
	Roles            []roleView     `json:"roles"`
	MealTypes        []mealTypeView `json:"meal_types"`
	MealPerPersonCap core.Money     `json:"meal_per_person_cap"`
}

func buildCatalog() catalogView {
	var c catalogView
	for _, cat := range core.Categories(core.Expense) {
		c.Expense = append(c.Expense, categoryView{Key: cat, Label: cat.Label()})
	}
	for _, cat := range core.Categories(core.Income) {
		c.Income = append(c.Income, categoryView{Key: cat, Label: cat.Label()})
	}
	for _, role := range rules.Roles {
		c.Roles = append(c.Roles, roleView{Key: role, Label: role.Label(), Rate: rules.Rates[role]})
	}
	for _, mt := range rules.MealTypes {
		c.MealTypes = append(c.MealTypes, mealTypeView{Key: mt, Label: mt.Label()})
	}
	c.MealPerPersonCap = rules.MealAllowancePerPerson
	return c
}

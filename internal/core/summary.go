package core

import "sort"

// Position tells which side owes money once a balance is settled.
type Position int

const (
	Settled Position = iota
	ToDeliver
	ToReceive
)

func (p Position) String() string {
	switch p {
	case ToDeliver:
		return "to deliver"
	case ToReceive:
		return "to receive"
	default:
		return "settled"
	}
}

// Summary holds income/expense totals. Net is income minus expense:
// positive means the user owes the organization, negative the reverse.
type Summary struct {
	TotalIncome  Money
	TotalExpense Money
	Net          Money
}

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	Type     TxType
	Category Category
	Amount   Money
	Count    int
}

// Summarize totals a transaction slice. An empty slice yields zeros.
func Summarize(txs []Transaction) Summary {
	var s Summary
	for _, tx := range txs {
		switch tx.Type {
		case Income:
			s.TotalIncome = s.TotalIncome.Add(tx.Amount)
		case Expense:
			s.TotalExpense = s.TotalExpense.Add(tx.Amount)
		}
	}
	s.Net = s.TotalIncome.Sub(s.TotalExpense)
	return s
}

func (s Summary) Position() Position {
	switch {
	case s.Net.Cents > 0:
		return ToDeliver
	case s.Net.Cents < 0:
		return ToReceive
	}
	return Settled
}

// Breakdown totals txs per category, expenses first, each group in
// display order.
func Breakdown(txs []Transaction) []CategoryAmount {
	idx := map[Category]int{}
	var out []CategoryAmount
	for _, tx := range txs {
		i, ok := idx[tx.Category]
		if !ok {
			i = len(out)
			idx[tx.Category] = i
			out = append(out, CategoryAmount{Type: tx.Type, Category: tx.Category})
		}
		out[i].Amount = out[i].Amount.Add(tx.Amount)
		out[i].Count++
	}
	sort.SliceStable(out, func(i, j int) bool {
		return categoryRank(out[i].Category) < categoryRank(out[j].Category)
	})
	return out
}

func categoryRank(c Category) int {
	for i, cat := range ExpenseCategories {
		if cat == c {
			return i
		}
	}
	for i, cat := range IncomeCategories {
		if cat == c {
			return len(ExpenseCategories) + i
		}
	}
	return len(ExpenseCategories) + len(IncomeCategories)
}

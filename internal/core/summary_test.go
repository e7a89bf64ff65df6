package core

import "testing"

func TestSummarize(t *testing.T) {
	cases := []struct {
		name string
		txs  []Transaction
		want Summary
		pos  Position
	}{
		{"empty", nil, Summary{}, Settled},
		{
			"income exceeds expense",
			[]Transaction{
				{Type: Income, Category: CategoryService, Amount: Euro(100)},
				{Type: Expense, Category: CategoryMeal, Amount: Euro(40)},
			},
			Summary{TotalIncome: Euro(100), TotalExpense: Euro(40), Net: Euro(60)},
			ToDeliver,
		},
		{
			"expense only",
			[]Transaction{{Type: Expense, Category: CategoryMeal, Amount: Euro(20)}},
			Summary{TotalExpense: Euro(20), Net: Euro(-20)},
			ToReceive,
		},
	}
	for _, tc := range cases {
		got := Summarize(tc.txs)
		if got != tc.want {
			t.Fatalf("%s: expected %+v, got %+v", tc.name, tc.want, got)
		}
		if got.Position() != tc.pos {
			t.Fatalf("%s: expected position %s, got %s", tc.name, tc.pos, got.Position())
		}
	}
}

func TestBreakdown(t *testing.T) {
	txs := []Transaction{
		{Type: Income, Category: CategoryService, Amount: Euro(50)},
		{Type: Expense, Category: CategoryPurchase, Amount: Euro(10)},
		{Type: Expense, Category: CategoryMeal, Amount: Euro(12)},
		{Type: Expense, Category: CategoryMeal, Amount: Euro(8)},
	}
	got := Breakdown(txs)
	if len(got) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(got))
	}
	if got[0].Category != CategoryMeal || got[0].Amount != Euro(20) || got[0].Count != 2 {
		t.Fatalf("unexpected first group %+v", got[0])
	}
	if got[2].Category != CategoryService {
		t.Fatalf("income should sort last, got %+v", got[2])
	}
}

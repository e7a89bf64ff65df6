package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"carteira/internal/core"
	"carteira/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time { return time.Date(2025, 2, 10, 14, 30, 5, 0, time.UTC) }

func txs() []core.Transaction {
	return []core.Transaction{
		{ID: "1", Date: core.NewDate(2025, 2, 4), Type: core.Expense, Category: core.CategoryMeal, Description: "Lunch with Ana", Amount: core.Euro(20), Owner: "ana"},
		{ID: "2", Date: core.NewDate(2025, 2, 20), Type: core.Expense, Category: core.CategoryPurchase, Description: "Paint - Workshop", Amount: core.Euro(50), Owner: "ana"},
		{ID: "3", Date: core.NewDate(2025, 2, 6), Type: core.Income, Category: core.CategoryService, Description: "Service #7", Amount: core.Money{Cents: 1999}, Owner: "ana"},
	}
}

func TestTransactionsRoundTripPreservesOrder(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())

	got, err := s.LoadTransactions(ctx, "ana")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.SaveTransactions(ctx, "ana", txs()))
	got, err = s.LoadTransactions(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, txs(), got)
}

func TestCorruptTransactionsFileIsBackedUp(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	var recovered []string
	s := New(dir, WithClock(fixedNow), WithRecovery(func(user, kind string) {
		recovered = append(recovered, kind)
	}))

	userDir := filepath.Join(dir, "users", "ana")
	require.NoError(t, os.MkdirAll(userDir, 0755))
	corrupt := []byte(`[{"date": "2025-02-04", "amount": `)
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "transactions.json"), corrupt, 0644))

	got, err := s.LoadTransactions(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, []core.Transaction{}, got)
	assert.Equal(t, []string{storage.KindTransactions}, recovered)

	backup := filepath.Join(userDir, "transactions.json.corrupt-20250210T143005")
	data, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, corrupt, data)

	_, err = os.Stat(filepath.Join(userDir, "transactions.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCorruptPeriodFallsBackToMissing(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := New(dir, WithClock(fixedNow))
	userDir := filepath.Join(dir, "users", "ana")
	require.NoError(t, os.MkdirAll(userDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "period.json"), []byte(`{"start_date": "soon"}`), 0644))

	_, ok, err := s.LoadPeriod(ctx, "ana")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.FileExists(t, filepath.Join(userDir, "period.json.corrupt-20250210T143005"))
}

func TestLegacyDatesFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := New(dir)
	userDir := filepath.Join(dir, "users", "ana")
	require.NoError(t, os.MkdirAll(userDir, 0755))
	legacy := `{"start_date": "2025-02-10", "end_date": "2025-02-16", "report_counter": 3}`
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "dates.json"), []byte(legacy), 0644))

	st, ok, err := s.LoadPeriod(ctx, "ana")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, st.Counter)
	assert.True(t, st.Period.Start.Equal(core.NewDate(2025, 2, 10)))
}

func TestSaveStateWritesEverything(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())
	p := core.NewPeriod(core.NewDate(2025, 2, 3))
	st := storage.State{
		Transactions: txs()[1:2],
		History:      []core.Report{core.NewReport(1, p, core.NewDate(2025, 2, 10), txs()[:1])},
		Period:       core.PeriodState{Period: p.Next(), Counter: 2},
	}
	require.NoError(t, s.SaveState(ctx, "ana", st))

	gotTxs, err := s.LoadTransactions(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, st.Transactions, gotTxs)

	gotHistory, err := s.LoadHistory(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, st.History, gotHistory)

	gotPeriod, ok, err := s.LoadPeriod(ctx, "ana")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, st.Period, gotPeriod)
}

func TestSaveStateRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := New(dir)
	p := core.NewPeriod(core.NewDate(2025, 2, 3))

	before := storage.State{
		Transactions: txs(),
		History:      []core.Report{},
		Period:       core.PeriodState{Period: p, Counter: 1},
	}
	require.NoError(t, s.SaveState(ctx, "ana", before))

	calls := 0
	s.rename = func(oldpath, newpath string) error {
		calls++
		if strings.HasSuffix(newpath, "period.json") {
			return errors.New("disk full")
		}
		return os.Rename(oldpath, newpath)
	}

	after := storage.State{
		Transactions: txs()[1:],
		History:      []core.Report{core.NewReport(1, p, core.NewDate(2025, 2, 10), txs()[:1])},
		Period:       core.PeriodState{Period: p.Next(), Counter: 2},
	}
	err := s.SaveState(ctx, "ana", after)
	require.Error(t, err)
	assert.Equal(t, 3, calls)

	gotTxs, err := s.LoadTransactions(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, before.Transactions, gotTxs)

	gotHistory, err := s.LoadHistory(ctx, "ana")
	require.NoError(t, err)
	assert.Empty(t, gotHistory)

	gotPeriod, _, err := s.LoadPeriod(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, before.Period, gotPeriod)

	entries, err := os.ReadDir(filepath.Join(dir, "users", "ana"))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-", "staged file left behind")
	}
}

func TestListUsers(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	require.NoError(t, s.SaveTransactions(ctx, "rui", nil))
	require.NoError(t, s.SaveTransactions(ctx, "ana", nil))
	users, err = s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ana", "rui"}, users)
}

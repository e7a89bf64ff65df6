package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"carteira/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T, opts ...SQLiteOption) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "db", "carteira.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteTransactionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLite(t)

	empty, err := repo.LoadTransactions(ctx, "ana")
	require.NoError(t, err)
	assert.Empty(t, empty)

	in := sampleTransactions()
	require.NoError(t, repo.SaveTransactions(ctx, "ana", in))
	out, err := repo.LoadTransactions(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, in, out)

	// overwrite keeps only the latest save
	require.NoError(t, repo.SaveTransactions(ctx, "ana", in[:1]))
	out, err = repo.LoadTransactions(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, in[:1], out)
}

func TestSQLitePeriod(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLite(t)

	_, ok, err := repo.LoadPeriod(ctx, "ana")
	require.NoError(t, err)
	assert.False(t, ok)

	st := core.PeriodState{Period: core.NewPeriod(core.NewDate(2025, 2, 3)), Counter: 4}
	require.NoError(t, repo.SavePeriod(ctx, "ana", st))
	got, ok, err := repo.LoadPeriod(ctx, "ana")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, st, got)
}

func TestSQLiteSaveStateAndListUsers(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLite(t)

	p := core.NewPeriod(core.NewDate(2025, 2, 3))
	st := State{
		Transactions: sampleTransactions()[1:2],
		History:      []core.Report{core.NewReport(1, p, core.NewDate(2025, 2, 10), sampleTransactions()[:1])},
		Period:       core.PeriodState{Period: p.Next(), Counter: 2},
	}
	require.NoError(t, repo.SaveState(ctx, "rui", st))
	require.NoError(t, repo.SavePeriod(ctx, "ana", core.PeriodState{Period: p, Counter: 1}))

	txs, err := repo.LoadTransactions(ctx, "rui")
	require.NoError(t, err)
	assert.Equal(t, st.Transactions, txs)
	history, err := repo.LoadHistory(ctx, "rui")
	require.NoError(t, err)
	assert.Equal(t, st.History, history)

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ana", "rui"}, users)
}

func TestSQLiteCorruptRowIsQuarantined(t *testing.T) {
	ctx := context.Background()
	var recovered []string
	repo := newTestSQLite(t,
		WithSQLiteRecovery(func(user, kind string) { recovered = append(recovered, user+"/"+kind) }),
		WithSQLiteClock(func() time.Time { return time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC) }),
	)

	require.NoError(t, repo.put(ctx, repo.db, "ana", KindTransactions, []byte(`[{"date": oops`)))

	txs, err := repo.LoadTransactions(ctx, "ana")
	require.NoError(t, err)
	assert.Empty(t, txs)
	assert.Equal(t, []string{"ana/transactions"}, recovered)

	n, err := repo.BackupCount(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// the corrupt row is gone, so the next load is a clean miss
	txs, err = repo.LoadTransactions(ctx, "ana")
	require.NoError(t, err)
	assert.Empty(t, txs)
	assert.Len(t, recovered, 1)
}

func TestSQLiteRejectsBadUser(t *testing.T) {
	repo := newTestSQLite(t)
	err := repo.SaveTransactions(context.Background(), "../etc", nil)
	assert.ErrorIs(t, err, ErrInvalidUser)
}

func TestMigrateSchemaIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.db")

	first, err := migrateSchema(path)
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	again, err := migrateSchema(path)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

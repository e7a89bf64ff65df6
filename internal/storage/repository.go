package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"carteira/internal/core"
	"carteira/internal/log"

	_ "modernc.org/sqlite"
)

// SQLiteRepository keeps each user's data as JSON documents in a single
// user_data table, one row per (user, kind).
type SQLiteRepository struct {
	db        *sql.DB
	now       func() time.Time
	onRecover RecoveryFunc
}

var _ Repository = (*SQLiteRepository)(nil)

type SQLiteOption func(*SQLiteRepository)

// WithSQLiteRecovery registers a callback for quarantined rows.
func WithSQLiteRecovery(fn RecoveryFunc) SQLiteOption {
	return func(r *SQLiteRepository) { r.onRecover = fn }
}

// WithSQLiteClock overrides the clock used for backup timestamps.
func WithSQLiteClock(now func() time.Time) SQLiteOption {
	return func(r *SQLiteRepository) { r.now = now }
}

func NewSQLiteRepository(dbPath string, opts ...SQLiteOption) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := migrateSchema(dbPath); err != nil {
		db.Close()
		return nil, err
	}

	repo := &SQLiteRepository{db: db, now: time.Now}
	for _, opt := range opts {
		opt(repo)
	}
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const upsertUserData = `
INSERT INTO user_data (username, data_type, data, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (username, data_type) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`

func (r *SQLiteRepository) put(ctx context.Context, ex execer, user, kind string, data []byte) error {
	_, err := ex.ExecContext(ctx, upsertUserData, user, kind, string(data), r.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save %s for %s: %w", kind, user, err)
	}
	return nil
}

func (r *SQLiteRepository) get(ctx context.Context, user, kind string) ([]byte, bool, error) {
	if err := ValidateUser(user); err != nil {
		return nil, false, err
	}
	var data string
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM user_data WHERE username = ? AND data_type = ?`, user, kind).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load %s for %s: %w", kind, user, err)
	}
	return []byte(data), true, nil
}

// quarantine moves an undecodable row into user_data_backup so the next
// load starts from the default.
func (r *SQLiteRepository) quarantine(ctx context.Context, user, kind string, data []byte, cause error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin quarantine: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_data_backup (username, data_type, data, reason, backed_up_at) VALUES (?, ?, ?, ?, ?)`,
		user, kind, string(data), cause.Error(), r.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("backup %s for %s: %w", kind, user, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM user_data WHERE username = ? AND data_type = ?`, user, kind); err != nil {
		return fmt.Errorf("clear %s for %s: %w", kind, user, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit quarantine: %w", err)
	}

	storageLogger().WarnContext(ctx, "Corrupt user data moved to backup table",
		log.FieldUser, user, "kind", kind, log.FieldError, cause)
	if r.onRecover != nil {
		r.onRecover(user, kind)
	}
	return nil
}

func (r *SQLiteRepository) LoadTransactions(ctx context.Context, user string) ([]core.Transaction, error) {
	data, ok, err := r.get(ctx, user, KindTransactions)
	if err != nil || !ok {
		return []core.Transaction{}, err
	}
	txs, err := DecodeTransactions(data)
	if err != nil {
		return []core.Transaction{}, r.quarantine(ctx, user, KindTransactions, data, err)
	}
	return txs, nil
}

func (r *SQLiteRepository) SaveTransactions(ctx context.Context, user string, txs []core.Transaction) error {
	if err := ValidateUser(user); err != nil {
		return err
	}
	data, err := EncodeTransactions(txs)
	if err != nil {
		return fmt.Errorf("encode transactions: %w", err)
	}
	return r.put(ctx, r.db, user, KindTransactions, data)
}

func (r *SQLiteRepository) LoadHistory(ctx context.Context, user string) ([]core.Report, error) {
	data, ok, err := r.get(ctx, user, KindHistory)
	if err != nil || !ok {
		return []core.Report{}, err
	}
	history, err := DecodeHistory(data)
	if err != nil {
		return []core.Report{}, r.quarantine(ctx, user, KindHistory, data, err)
	}
	return history, nil
}

func (r *SQLiteRepository) SaveHistory(ctx context.Context, user string, history []core.Report) error {
	if err := ValidateUser(user); err != nil {
		return err
	}
	data, err := EncodeHistory(history)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return r.put(ctx, r.db, user, KindHistory, data)
}

func (r *SQLiteRepository) LoadPeriod(ctx context.Context, user string) (core.PeriodState, bool, error) {
	data, ok, err := r.get(ctx, user, KindPeriod)
	if err != nil || !ok {
		return core.PeriodState{}, false, err
	}
	st, err := DecodePeriod(data)
	if err != nil {
		return core.PeriodState{}, false, r.quarantine(ctx, user, KindPeriod, data, err)
	}
	return st, true, nil
}

func (r *SQLiteRepository) SavePeriod(ctx context.Context, user string, st core.PeriodState) error {
	if err := ValidateUser(user); err != nil {
		return err
	}
	data, err := EncodePeriod(st)
	if err != nil {
		return fmt.Errorf("encode period: %w", err)
	}
	return r.put(ctx, r.db, user, KindPeriod, data)
}

// SaveState writes transactions, history and period in one SQL
// transaction.
func (r *SQLiteRepository) SaveState(ctx context.Context, user string, st State) error {
	if err := ValidateUser(user); err != nil {
		return err
	}
	txData, err := EncodeTransactions(st.Transactions)
	if err != nil {
		return fmt.Errorf("encode transactions: %w", err)
	}
	histData, err := EncodeHistory(st.History)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	periodData, err := EncodePeriod(st.Period)
	if err != nil {
		return fmt.Errorf("encode period: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save state: %w", err)
	}
	defer tx.Rollback()

	for _, part := range []struct {
		kind string
		data []byte
	}{
		{KindTransactions, txData},
		{KindHistory, histData},
		{KindPeriod, periodData},
	} {
		if err := r.put(ctx, tx, user, part.kind, part.data); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save state: %w", err)
	}

	storageLogger().InfoContext(ctx, "User state saved to SQLite",
		log.FieldUser, user,
		"transactions", len(st.Transactions),
		"reports", len(st.History),
		log.FieldCounter, st.Period.Counter)
	return nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT username FROM user_data ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// BackupCount returns how many quarantined rows exist for a user.
func (r *SQLiteRepository) BackupCount(ctx context.Context, user string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_data_backup WHERE username = ?`, user).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count backups: %w", err)
	}
	return n, nil
}

func storageLogger() *log.Logger { return log.Wrap(nil, log.ComponentStorage) }

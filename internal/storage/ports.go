package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"carteira/internal/core"
)

// TransactionRepository persists a user's live transactions.
type TransactionRepository interface {
	LoadTransactions(ctx context.Context, user string) ([]core.Transaction, error)
	SaveTransactions(ctx context.Context, user string, txs []core.Transaction) error
}

// HistoryRepository persists a user's submitted reports in order.
type HistoryRepository interface {
	LoadHistory(ctx context.Context, user string) ([]core.Report, error)
	SaveHistory(ctx context.Context, user string, history []core.Report) error
}

// PeriodRepository persists the reporting cycle. LoadPeriod reports
// false when the user has never had one.
type PeriodRepository interface {
	LoadPeriod(ctx context.Context, user string) (core.PeriodState, bool, error)
	SavePeriod(ctx context.Context, user string, st core.PeriodState) error
}

// State is everything a submission rewrites at once.
type State struct {
	Transactions []core.Transaction
	History      []core.Report
	Period       core.PeriodState
}

// Repository is the full persistence surface the ledger needs.
// SaveState must either write all three parts or none.
type Repository interface {
	TransactionRepository
	HistoryRepository
	PeriodRepository
	SaveState(ctx context.Context, user string, st State) error
	ListUsers(ctx context.Context) ([]string, error)
	Close() error
}

// RecoveryFunc is told when a corrupt record was set aside. kind is one
// of the Kind constants.
type RecoveryFunc func(user, kind string)

const (
	KindTransactions = "transactions"
	KindHistory      = "history"
	KindPeriod       = "period"
)

var ErrInvalidUser = errors.New("invalid user name")

// ValidateUser rejects names that cannot safely namespace storage.
func ValidateUser(user string) error {
	if strings.TrimSpace(user) == "" || user == "." || user == ".." {
		return ErrInvalidUser
	}
	for _, r := range user {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-' || r == '@':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidUser, user)
		}
	}
	return nil
}

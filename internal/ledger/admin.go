package ledger

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/storage"
)

// overviewConcurrency bounds how many users are loaded at once.
const overviewConcurrency = 4

// UserOverview is one row of the admin dashboard.
type UserOverview struct {
	User          string
	Period        core.Period
	Late          bool
	Pending       int
	Live          core.Summary
	Reports       int
	LastReport    string
	LastSubmitted core.Date
}

func requireAdmin(sess *Session) error {
	if sess == nil || !sess.Identity.IsAdmin {
		return ErrForbidden
	}
	return nil
}

// UserTransactions is the admin's read-only view of another user's
// live store.
func (s *Service) UserTransactions(ctx context.Context, admin *Session, user string) ([]core.Transaction, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	if err := storage.ValidateUser(user); err != nil {
		return nil, err
	}
	txs, err := s.repo.LoadTransactions(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("load transactions for %s: %w", user, err)
	}
	return txs, nil
}

// UserHistory is the admin's read-only view of another user's reports.
func (s *Service) UserHistory(ctx context.Context, admin *Session, user string) ([]core.Report, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	if err := storage.ValidateUser(user); err != nil {
		return nil, err
	}
	history, err := s.repo.LoadHistory(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", user, err)
	}
	return history, nil
}

func (s *Service) UserReport(ctx context.Context, admin *Session, user string, seq int) (core.Report, error) {
	history, err := s.UserHistory(ctx, admin, user)
	if err != nil {
		return core.Report{}, err
	}
	if r, ok := core.FindReport(history, seq); ok {
		return r, nil
	}
	return core.Report{}, fmt.Errorf("%w: %s for %s", ErrReportNotFound, core.ReportNumber(seq), user)
}

// Overview loads every user's state concurrently. It never writes: users
// without a stored period are shown on the one RestoreState derives.
func (s *Service) Overview(ctx context.Context, admin *Session) ([]UserOverview, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	today := s.clock.Today()
	out := make([]UserOverview, len(users))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(overviewConcurrency)
	for i, user := range users {
		i, user := i, user
		g.Go(func() error {
			row, err := s.overviewOf(gctx, user, today)
			if err != nil {
				return err
			}
			out[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Admin overview built",
		log.FieldUser, admin.User(), log.FieldOperation, log.OpOverview, "users", len(out))
	return out, nil
}

func (s *Service) overviewOf(ctx context.Context, user string, today core.Date) (UserOverview, error) {
	txs, err := s.repo.LoadTransactions(ctx, user)
	if err != nil {
		return UserOverview{}, fmt.Errorf("load transactions for %s: %w", user, err)
	}
	history, err := s.repo.LoadHistory(ctx, user)
	if err != nil {
		return UserOverview{}, fmt.Errorf("load history for %s: %w", user, err)
	}
	st, ok, err := s.repo.LoadPeriod(ctx, user)
	if err != nil {
		return UserOverview{}, fmt.Errorf("load period for %s: %w", user, err)
	}
	if !ok {
		st = RestoreState(history)
	}

	row := UserOverview{
		User:    user,
		Period:  st.Period,
		Late:    st.Period.IsLate(today),
		Pending: len(txs),
		Live:    core.Summarize(txs),
		Reports: len(history),
	}
	if n := len(history); n > 0 {
		row.LastReport = history[n-1].Number
		row.LastSubmitted = history[n-1].SubmittedOn
	}
	return row, nil
}

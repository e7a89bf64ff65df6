// Package ledger runs the weekly reporting cycle: transactions are recorded
// into the open period, a submission archives them into a report, and the
// cycle rolls to the following week.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/rules"
	"carteira/internal/storage"
)

var (
	ErrForbidden      = errors.New("admin access required")
	ErrReportNotFound = errors.New("report not found")
	ErrOutsidePeriod  = errors.New("date is outside the active period")
)

// Clock supplies the current calendar day.
type Clock interface {
	Today() core.Date
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() core.Date

func (f ClockFunc) Today() core.Date { return f() }

// FixedClock always returns d.
func FixedClock(d core.Date) Clock {
	return ClockFunc(func() core.Date { return d })
}

// SystemClock reads the wall clock in Location (UTC when nil).
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Today() core.Date {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return core.DateOf(time.Now().In(loc))
}

// ReportPublisher announces a report once it has been committed.
type ReportPublisher interface {
	PublishReportSubmitted(ctx context.Context, user string, sequence int) error
}

// Observer receives counters for the ledger's operations.
type Observer interface {
	TransactionRecorded(category core.Category)
	ReportSubmitted()
	SubmissionRejected(reason string)
}

type nopObserver struct{}

func (nopObserver) TransactionRecorded(core.Category) {}
func (nopObserver) ReportSubmitted()                  {}
func (nopObserver) SubmissionRejected(string)         {}

type Service struct {
	repo      storage.Repository
	clock     Clock
	publisher ReportPublisher
	observer  Observer
	logger    *log.Logger
	newID     func() string
}

type Option func(*Service)

func WithPublisher(p ReportPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l.WithComponent(log.ComponentLedger) }
}

// WithIDGenerator replaces the uuid generator for transaction ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

func NewService(repo storage.Repository, clock Clock, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		clock:    clock,
		observer: nopObserver{},
		logger:   log.Wrap(nil, log.ComponentLedger),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today exposes the injected clock to callers that render dates.
func (s *Service) Today() core.Date { return s.clock.Today() }

// Open loads a user's session. A user without a stored period, whether new
// or with a period record lost to corruption, gets the state RestoreState
// derives from their history, which is persisted right away.
func (s *Service) Open(ctx context.Context, id core.Identity) (*Session, error) {
	if err := storage.ValidateUser(id.User); err != nil {
		return nil, err
	}

	txs, err := s.repo.LoadTransactions(ctx, id.User)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	history, err := s.repo.LoadHistory(ctx, id.User)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	st, ok, err := s.repo.LoadPeriod(ctx, id.User)
	if err != nil {
		return nil, fmt.Errorf("load period: %w", err)
	}
	if !ok {
		st = RestoreState(history)
		if err := s.repo.SavePeriod(ctx, id.User, st); err != nil {
			return nil, fmt.Errorf("bootstrap period: %w", err)
		}
		s.logger.InfoContext(ctx, "Bootstrapped reporting period",
			log.FieldOperation, log.OpOpen,
			log.FieldUser, id.User,
			log.FieldPeriod, st.Period.Label(),
			log.FieldCounter, st.Counter,
			"from_history", len(history) > 0)
	}

	return &Session{
		Identity:     id,
		Cycle:        NewCycle(st),
		Transactions: NewStore(txs),
		History:      history,
	}, nil
}

// Balance is the live summary of the session's store.
func (s *Service) Balance(sess *Session) core.Summary {
	return sess.Balance()
}

// Status reports the session against the injected clock.
func (s *Service) Status(sess *Session) Status {
	return sess.StatusOn(s.clock.Today())
}

// Record validates form, dates it and appends it to the live store. The
// date is checked before any category field.
func (s *Service) Record(ctx context.Context, sess *Session, date core.Date, form rules.Form) (core.Transaction, error) {
	if !sess.Period().Contains(date) {
		return core.Transaction{}, rules.FieldErrors{{Field: "date", Err: ErrOutsidePeriod}}
	}
	out, err := rules.Evaluate(form)
	if err != nil {
		return core.Transaction{}, err
	}

	tx := core.Transaction{
		ID:          s.newID(),
		Date:        date,
		Type:        out.Type,
		Category:    out.Category,
		Description: out.Description,
		Amount:      out.Amount,
		Owner:       sess.User(),
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("build transaction: %w", err)
	}

	next := append(sess.Transactions.All(), tx)
	if err := s.repo.SaveTransactions(ctx, sess.User(), next); err != nil {
		return core.Transaction{}, fmt.Errorf("save transactions: %w", err)
	}
	sess.Transactions.Append(tx)
	s.observer.TransactionRecorded(tx.Category)

	s.logger.InfoContext(ctx, "Transaction recorded",
		log.FieldOperation, log.OpRecord,
		log.FieldUser, sess.User(),
		log.FieldTxID, tx.ID,
		log.FieldCategory, string(tx.Category),
		log.FieldAmountCents, tx.Amount.Cents)
	return tx, nil
}

// Submit archives the open period. Nothing changes, in storage or in
// sess, unless every part of the new state was committed.
func (s *Service) Submit(ctx context.Context, sess *Session) (core.Report, error) {
	today := s.clock.Today()
	arch, err := Submit(sess.Transactions.All(), sess.Cycle.State(), today)
	if err != nil {
		var pe *PreconditionError
		if errors.As(err, &pe) {
			s.observer.SubmissionRejected(rejectionReason(pe))
			s.logger.WarnContext(ctx, "Report submission rejected",
				log.FieldOperation, log.OpSubmit,
				log.FieldUser, sess.User(),
				log.FieldPeriod, pe.Period.Label(),
				log.FieldError, pe.Reason)
		}
		return core.Report{}, err
	}

	history := make([]core.Report, 0, len(sess.History)+1)
	history = append(history, sess.History...)
	history = append(history, arch.Report)

	// once the preconditions pass the commit runs to completion
	commitCtx := context.WithoutCancel(ctx)
	err = s.repo.SaveState(commitCtx, sess.User(), storage.State{
		Transactions: arch.Remaining,
		History:      history,
		Period:       arch.Next,
	})
	if err != nil {
		return core.Report{}, fmt.Errorf("commit submission: %w", err)
	}

	sess.Transactions = NewStore(arch.Remaining)
	sess.History = history
	sess.Cycle = NewCycle(arch.Next)
	s.observer.ReportSubmitted()

	s.logger.InfoContext(ctx, "Report submitted",
		log.FieldOperation, log.OpSubmit,
		log.FieldUser, sess.User(),
		log.FieldReport, arch.Report.Number,
		log.FieldPeriod, arch.Report.PeriodLabel,
		"archived", len(arch.Report.Transactions),
		"kept", len(arch.Remaining),
		"net_cents", arch.Report.Summary.Net.Cents)

	if s.publisher != nil {
		if err := s.publisher.PublishReportSubmitted(commitCtx, sess.User(), arch.Report.Sequence); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish report event, export will not run",
				log.FieldUser, sess.User(), log.FieldReport, arch.Report.Number, log.FieldError, err)
		}
	}
	return arch.Report, nil
}

func rejectionReason(pe *PreconditionError) string {
	switch {
	case errors.Is(pe.Reason, ErrFuturePeriod):
		return "future_period"
	case errors.Is(pe.Reason, ErrBeforeInception):
		return "before_inception"
	}
	return "other"
}

// History returns a copy of the user's archived reports, oldest first.
func (s *Service) History(sess *Session) []core.Report {
	out := make([]core.Report, len(sess.History))
	copy(out, sess.History)
	return out
}

// Report finds one of the session's own reports.
func (s *Service) Report(sess *Session, seq int) (core.Report, error) {
	if r, ok := core.FindReport(sess.History, seq); ok {
		return r, nil
	}
	return core.Report{}, fmt.Errorf("%w: %s", ErrReportNotFound, core.ReportNumber(seq))
}

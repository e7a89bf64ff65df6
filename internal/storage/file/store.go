// Package file stores each user's data as JSON documents under
// {dir}/users/{user}/.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/storage"
)

const (
	transactionsFile = "transactions.json"
	historyFile      = "history.json"
	periodFile       = "period.json"
	legacyPeriodFile = "dates.json"

	backupLayout = "20060102T150405"
)

type Store struct {
	dir       string
	now       func() time.Time
	onRecover storage.RecoveryFunc
	rename    func(oldpath, newpath string) error

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var _ storage.Repository = (*Store)(nil)

type Option func(*Store)

// WithRecovery registers a callback for files set aside as corrupt.
func WithRecovery(fn storage.RecoveryFunc) Option {
	return func(s *Store) { s.onRecover = fn }
}

// WithClock overrides the clock used in backup file names.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(dir string, opts ...Option) *Store {
	s := &Store{
		dir:    dir,
		now:    time.Now,
		rename: os.Rename,
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Close() error { return nil }

// lock serialises writers for one user inside this process.
func (s *Store) lock(user string) func() {
	s.mu.Lock()
	l, ok := s.locks[user]
	if !ok {
		l = &sync.Mutex{}
		s.locks[user] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (s *Store) userDir(user string) string {
	return filepath.Join(s.dir, "users", user)
}

func (s *Store) path(user, name string) string {
	return filepath.Join(s.userDir(user), name)
}

func (s *Store) read(user, name string) ([]byte, bool, error) {
	if err := storage.ValidateUser(user); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(s.path(user, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s for %s: %w", name, user, err)
	}
	return data, true, nil
}

// setAside renames a corrupt file to {name}.corrupt-{timestamp}.
func (s *Store) setAside(ctx context.Context, user, name, kind string, cause error) error {
	src := s.path(user, name)
	dst := src + ".corrupt-" + s.now().UTC().Format(backupLayout)
	if err := s.rename(src, dst); err != nil {
		return fmt.Errorf("back up corrupt %s: %w", name, err)
	}
	storageLogger().WarnContext(ctx, "Corrupt data file backed up",
		log.FieldUser, user, "file", name, "backup", filepath.Base(dst), log.FieldError, cause)
	if s.onRecover != nil {
		s.onRecover(user, kind)
	}
	return nil
}

func (s *Store) write(user, name string, data []byte) error {
	dir := s.userDir(user)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create user directory: %w", err)
	}
	tmp, err := stage(dir, name, data)
	if err != nil {
		return err
	}
	if err := s.rename(tmp, s.path(user, name)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

func stage(dir, name string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("stage %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("stage %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("sync %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return f.Name(), nil
}

func (s *Store) LoadTransactions(ctx context.Context, user string) ([]core.Transaction, error) {
	data, ok, err := s.read(user, transactionsFile)
	if err != nil || !ok {
		return []core.Transaction{}, err
	}
	txs, err := storage.DecodeTransactions(data)
	if err != nil {
		return []core.Transaction{}, s.setAside(ctx, user, transactionsFile, storage.KindTransactions, err)
	}
	return txs, nil
}

func (s *Store) SaveTransactions(ctx context.Context, user string, txs []core.Transaction) error {
	if err := storage.ValidateUser(user); err != nil {
		return err
	}
	data, err := storage.EncodeTransactions(txs)
	if err != nil {
		return fmt.Errorf("encode transactions: %w", err)
	}
	defer s.lock(user)()
	return s.write(user, transactionsFile, data)
}

func (s *Store) LoadHistory(ctx context.Context, user string) ([]core.Report, error) {
	data, ok, err := s.read(user, historyFile)
	if err != nil || !ok {
		return []core.Report{}, err
	}
	history, err := storage.DecodeHistory(data)
	if err != nil {
		return []core.Report{}, s.setAside(ctx, user, historyFile, storage.KindHistory, err)
	}
	return history, nil
}

func (s *Store) SaveHistory(ctx context.Context, user string, history []core.Report) error {
	if err := storage.ValidateUser(user); err != nil {
		return err
	}
	data, err := storage.EncodeHistory(history)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	defer s.lock(user)()
	return s.write(user, historyFile, data)
}

// LoadPeriod falls back to the older dates.json name.
func (s *Store) LoadPeriod(ctx context.Context, user string) (core.PeriodState, bool, error) {
	for _, name := range []string{periodFile, legacyPeriodFile} {
		data, ok, err := s.read(user, name)
		if err != nil {
			return core.PeriodState{}, false, err
		}
		if !ok {
			continue
		}
		st, err := storage.DecodePeriod(data)
		if err != nil {
			return core.PeriodState{}, false, s.setAside(ctx, user, name, storage.KindPeriod, err)
		}
		return st, true, nil
	}
	return core.PeriodState{}, false, nil
}

func (s *Store) SavePeriod(ctx context.Context, user string, st core.PeriodState) error {
	if err := storage.ValidateUser(user); err != nil {
		return err
	}
	data, err := storage.EncodePeriod(st)
	if err != nil {
		return fmt.Errorf("encode period: %w", err)
	}
	defer s.lock(user)()
	return s.write(user, periodFile, data)
}

type snapshot struct {
	name    string
	prev    []byte
	existed bool
}

// SaveState stages all three files first, then swaps them in. If a swap
// fails the files already replaced get their previous contents back.
func (s *Store) SaveState(ctx context.Context, user string, st storage.State) error {
	if err := storage.ValidateUser(user); err != nil {
		return err
	}
	txData, err := storage.EncodeTransactions(st.Transactions)
	if err != nil {
		return fmt.Errorf("encode transactions: %w", err)
	}
	histData, err := storage.EncodeHistory(st.History)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	periodData, err := storage.EncodePeriod(st.Period)
	if err != nil {
		return fmt.Errorf("encode period: %w", err)
	}

	defer s.lock(user)()

	dir := s.userDir(user)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create user directory: %w", err)
	}

	parts := []struct {
		name string
		data []byte
	}{
		{transactionsFile, txData},
		{historyFile, histData},
		{periodFile, periodData},
	}

	temps := make([]string, 0, len(parts))
	cleanup := func() {
		for _, t := range temps {
			os.Remove(t)
		}
	}
	for _, p := range parts {
		tmp, err := stage(dir, p.name, p.data)
		if err != nil {
			cleanup()
			return err
		}
		temps = append(temps, tmp)
	}

	done := make([]snapshot, 0, len(parts))
	for i, p := range parts {
		prev, existed, err := s.read(user, p.name)
		if err != nil {
			s.restore(user, done)
			cleanup()
			return err
		}
		if err := s.rename(temps[i], s.path(user, p.name)); err != nil {
			s.restore(user, done)
			cleanup()
			storageLogger().ErrorContext(ctx, "User state commit rolled back",
				log.FieldUser, user, "file", p.name, log.FieldError, err)
			return fmt.Errorf("commit %s: %w", p.name, err)
		}
		done = append(done, snapshot{name: p.name, prev: prev, existed: existed})
	}

	storageLogger().InfoContext(ctx, "User state saved to files",
		log.FieldUser, user,
		"transactions", len(st.Transactions),
		"reports", len(st.History),
		log.FieldCounter, st.Period.Counter)
	return nil
}

func (s *Store) restore(user string, done []snapshot) {
	for _, snap := range done {
		path := s.path(user, snap.name)
		if !snap.existed {
			os.Remove(path)
			continue
		}
		if err := os.WriteFile(path, snap.prev, 0644); err != nil {
			storageLogger().Error("Failed to restore previous file", log.FieldUser, user, "file", snap.name, log.FieldError, err)
		}
	}
}

func (s *Store) ListUsers(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, "users"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	var users []string
	for _, e := range entries {
		if e.IsDir() && storage.ValidateUser(e.Name()) == nil {
			users = append(users, e.Name())
		}
	}
	sort.Strings(users)
	return users, nil
}

func storageLogger() *log.Logger { return log.Wrap(nil, log.ComponentStorage) }

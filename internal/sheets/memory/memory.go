package memory

import (
	"context"
	"fmt"
	"sync"

	"carteira/internal/core"
	ports "carteira/internal/sheets"
)

var _ ports.ReportSink = (*Store)(nil)

// Store keeps exported rows in memory. It stands in for Google Sheets
// when no spreadsheet is configured.
type Store struct {
	mu   sync.Mutex
	rows [][]any
	keys map[string]int
}

func New() *Store {
	return &Store{keys: map[string]int{}}
}

// AppendReport stores the row and returns a synthetic row reference.
func (s *Store) AppendReport(_ context.Context, owner string, r core.Report) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, ports.Row(owner, r))
	s.keys[ports.RowKey(owner, r.Sequence)] = len(s.rows)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

func (s *Store) HasReport(_ context.Context, owner string, r core.Report) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[ports.RowKey(owner, r.Sequence)]
	return ok, nil
}

// Rows returns a copy of the appended rows.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.rows))
	copy(out, s.rows)
	return out
}

package ledger

import "carteira/internal/core"

// Store is a user's live transactions in insertion order.
type Store struct {
	txs []core.Transaction
}

// NewStore copies txs into a new store.
func NewStore(txs []core.Transaction) *Store {
	s := &Store{txs: make([]core.Transaction, len(txs))}
	copy(s.txs, txs)
	return s
}

// Append adds tx at the end. Callers validate through rules first.
func (s *Store) Append(tx core.Transaction) {
	s.txs = append(s.txs, tx)
}

// RemoveMatching drops every transaction pred accepts and returns them,
// keeping the relative order of both halves.
func (s *Store) RemoveMatching(pred func(core.Transaction) bool) []core.Transaction {
	removed, kept := Partition(s.txs, pred)
	s.txs = kept
	return removed
}

// All returns a copy of the live transactions.
func (s *Store) All() []core.Transaction {
	out := make([]core.Transaction, len(s.txs))
	copy(out, s.txs)
	return out
}

func (s *Store) Len() int { return len(s.txs) }

// Partition splits txs without touching the input slice.
func Partition(txs []core.Transaction, pred func(core.Transaction) bool) (match, rest []core.Transaction) {
	match = []core.Transaction{}
	rest = []core.Transaction{}
	for _, tx := range txs {
		if pred(tx) {
			match = append(match, tx)
		} else {
			rest = append(rest, tx)
		}
	}
	return match, rest
}

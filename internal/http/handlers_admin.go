package http

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"carteira/internal/core"
	"carteira/internal/export"
	"carteira/internal/ledger"
)

// adminSession wraps the caller's identity. Admin views are read-only,
// so the admin's own ledger is never opened.
func adminSession(r *http.Request) *ledger.Session {
	id, _ := identityFrom(r.Context())
	return &ledger.Session{Identity: id}
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	rows, err := s.ledger.Overview(r.Context(), adminSession(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Today core.Date      `json:"today"`
		Users []overviewView `json:"users"`
	}{s.ledger.Today(), viewOverview(rows)})
}

func (s *Server) handleAdminOverviewPDF(w http.ResponseWriter, r *http.Request) {
	rows, err := s.ledger.Overview(r.Context(), adminSession(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pdfRows := make([]export.OverviewRow, len(rows))
	for i, row := range rows {
		pdfRows[i] = export.OverviewRow{
			User:       row.User,
			Period:     row.Period,
			Late:       row.Late,
			Pending:    row.Pending,
			Net:        row.Live.Net,
			Reports:    row.Reports,
			LastReport: row.LastReport,
		}
	}

	today := s.ledger.Today()
	var buf bytes.Buffer
	if err := export.WriteOverviewPDF(&buf, today, pdfRows); err != nil {
		s.writeError(w, r, fmt.Errorf("render overview: %w", err))
		return
	}
	writeAttachment(w, "application/pdf", fmt.Sprintf("resumo_%s.pdf", today.String()), buf.Bytes())
}

func (s *Server) handleAdminTransactions(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	txs, err := s.ledger.UserTransactions(r.Context(), adminSession(r), user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		User         string            `json:"user"`
		Transactions []transactionView `json:"transactions"`
		Balance      summaryView       `json:"balance"`
	}{user, viewTransactions(txs), viewSummary(core.Summarize(txs))})
}

func (s *Server) handleAdminHistory(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	history, err := s.ledger.UserHistory(r.Context(), adminSession(r), user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		User    string       `json:"user"`
		Reports []reportView `json:"reports"`
	}{user, viewHistory(history)})
}

func (s *Server) handleAdminReportPDF(w http.ResponseWriter, r *http.Request) {
	seq, err := seqParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	user := chi.URLParam(r, "user")
	rep, err := s.ledger.UserReport(r.Context(), adminSession(r), user, seq)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeReportPDF(w, r, user, rep)
}

package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"carteira/internal/core"
	"carteira/internal/export"
	"carteira/internal/ledger"
	"carteira/internal/log"
	"carteira/internal/rules"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      string    `json:"user"`
	IsAdmin   bool      `json:"is_admin"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.loginLimiter.allow(extractClientIP(r)) {
		if s.metrics != nil {
			s.metrics.RequestBlocked("rate_limited")
		}
		s.writeError(w, r, errTooManyAttempts)
		return
	}

	b, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req loginRequest
	if err := decodeJSON(b, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	name := sanitizeInput(req.Username)

	logger := log.FromContext(r.Context())
	id, err := s.users.Authenticate(r.Context(), name, req.Password)
	if s.metrics != nil {
		s.metrics.Login(err == nil)
	}
	if err != nil {
		logger.WarnContext(r.Context(), "Login failed",
			log.FieldUser, name, log.FieldOperation, log.OpLogin)
		s.writeError(w, r, err)
		return
	}

	token, exp, err := s.tokens.Issue(id)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("issue token: %w", err))
		return
	}
	logger.InfoContext(r.Context(), "Login succeeded",
		log.FieldUser, id.User, log.FieldAdmin, id.IsAdmin, log.FieldOperation, log.OpLogin)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: exp, User: id.User, IsAdmin: id.IsAdmin})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildCatalog())
}

// withSession opens the caller's session under their lock and hands it to fn.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fn func(*ledger.Session)) {
	id, ok := identityFrom(r.Context())
	if !ok {
		s.writeError(w, r, errMissingToken)
		return
	}
	unlock := s.locks.lock(id.User)
	defer unlock()

	sess, err := s.ledger.Open(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	fn(sess)
}

func (s *Server) handlePeriod(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *ledger.Session) {
		writeJSON(w, http.StatusOK, viewStatus(s.ledger.Status(sess), s.ledger.Today()))
	})
}

type transactionsResponse struct {
	Period       periodView        `json:"period"`
	Transactions []transactionView `json:"transactions"`
	Balance      summaryView       `json:"balance"`
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *ledger.Session) {
		writeJSON(w, http.StatusOK, transactionsResponse{
			Period:       viewPeriod(sess.Period()),
			Transactions: viewTransactions(sess.Transactions.All()),
			Balance:      viewSummary(s.ledger.Balance(sess)),
		})
	})
}

func (s *Server) handleTransactionsCSV(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *ledger.Session) {
		var buf bytes.Buffer
		if err := export.WriteCSV(&buf, sess.Transactions.All()); err != nil {
			s.writeError(w, r, fmt.Errorf("render csv: %w", err))
			return
		}
		writeAttachment(w, "text/csv; charset=utf-8", fmt.Sprintf("transacoes_%s.csv", sess.User()), buf.Bytes())
	})
}

// parseRecordBody splits the request into its date and the category form.
// The date field is optional in the JSON but always checked first.
func parseRecordBody(b []byte, form rules.Form) (core.Date, error) {
	fields := map[string]json.RawMessage{}
	if err := decodeJSON(b, &fields); err != nil {
		return core.Date{}, err
	}

	var date core.Date
	if raw, ok := fields["date"]; ok {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return core.Date{}, rules.FieldErrors{{Field: "date", Err: core.ErrInvalidDate}}
		}
		d, err := core.ParseDate(strings.TrimSpace(text))
		if err != nil {
			return core.Date{}, rules.FieldErrors{{Field: "date", Err: core.ErrInvalidDate}}
		}
		date = d
		delete(fields, "date")
	}

	rest, err := json.Marshal(fields)
	if err != nil {
		return core.Date{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := decodeJSON(rest, form); err != nil {
		return core.Date{}, err
	}
	return date, nil
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	form, err := rules.FormFor(core.Category(chi.URLParam(r, "category")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	b, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	date, err := parseRecordBody(b, form)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.withSession(w, r, func(sess *ledger.Session) {
		tx, err := s.ledger.Record(r.Context(), sess, date, form)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, struct {
			Transaction transactionView `json:"transaction"`
			Balance     summaryView     `json:"balance"`
		}{viewTransaction(tx), viewSummary(s.ledger.Balance(sess))})
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *ledger.Session) {
		report, err := s.ledger.Submit(r.Context(), sess)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, struct {
			Report reportView `json:"report"`
			Next   periodView `json:"next_period"`
		}{viewReport(report, true), viewPeriod(sess.Period())})
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *ledger.Session) {
		writeJSON(w, http.StatusOK, struct {
			Reports []reportView `json:"reports"`
		}{viewHistory(s.ledger.History(sess))})
	})
}

func (s *Server) ownReport(w http.ResponseWriter, r *http.Request, fn func(owner string, rep core.Report)) {
	seq, err := seqParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.withSession(w, r, func(sess *ledger.Session) {
		rep, err := s.ledger.Report(sess, seq)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		fn(sess.User(), rep)
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.ownReport(w, r, func(_ string, rep core.Report) {
		writeJSON(w, http.StatusOK, viewReport(rep, true))
	})
}

func (s *Server) handleReportPDF(w http.ResponseWriter, r *http.Request) {
	s.ownReport(w, r, func(owner string, rep core.Report) {
		s.writeReportPDF(w, r, owner, rep)
	})
}

func (s *Server) writeReportPDF(w http.ResponseWriter, r *http.Request, owner string, rep core.Report) {
	var buf bytes.Buffer
	if err := export.WriteReportPDF(&buf, owner, rep); err != nil {
		s.writeError(w, r, fmt.Errorf("render %s: %w", rep.Number, err))
		return
	}
	writeAttachment(w, "application/pdf", fmt.Sprintf("relatorio_%s_%d.pdf", owner, rep.Sequence), buf.Bytes())
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

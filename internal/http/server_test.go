package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"carteira/internal/auth"
	"carteira/internal/core"
	"carteira/internal/ledger"
	"carteira/internal/metrics"
	"carteira/internal/storage/file"
)

type testServer struct {
	t   *testing.T
	srv *Server
}

func newTestServer(t *testing.T, today core.Date) *testServer {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	users := auth.NewDirectory(dir+"/users.json", auth.WithCost(bcrypt.MinCost))
	require.NoError(t, users.AddUser(ctx, "ana", "s3cret-pass", false))
	require.NoError(t, users.AddUser(ctx, "boss", "s3cret-pass", true))

	m := metrics.New()
	repo := file.New(dir+"/data", file.WithRecovery(m.StorageRecovered))
	svc := ledger.NewService(repo, ledger.FixedClock(today), ledger.WithObserver(m))

	srv := NewServer(":0", Deps{
		Ledger:  svc,
		Users:   users,
		Tokens:  auth.NewTokens("0123456789abcdef-test", time.Hour),
		Metrics: m,
		Ready:   func(ctx context.Context) error { _, err := repo.ListUsers(ctx); return err },
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testServer{t: t, srv: srv}
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(ts.t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) login(name string) string {
	ts.t.Helper()
	rr := ts.do(http.MethodPost, "/v1/login", "", map[string]string{"username": name, "password": "s3cret-pass"})
	require.Equal(ts.t, http.StatusOK, rr.Code, rr.Body.String())
	var resp loginResponse
	require.NoError(ts.t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(ts.t, resp.Token)
	return resp.Token
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, core.NewDate(2025, 2, 10))
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := ts.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
	rr := ts.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ts := newTestServer(t, core.NewDate(2025, 2, 10))

	rr := ts.do(http.MethodPost, "/v1/login", "", map[string]string{"username": "ana", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "invalid username or password", decode(t, rr)["error"])

	rr = ts.do(http.MethodPost, "/v1/login", "", map[string]any{"username": "ana", "nope": 1})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLoginRateLimited(t *testing.T) {
	ts := newTestServer(t, core.NewDate(2025, 2, 10))
	var last int
	for i := 0; i <= loginAttemptsPerMinute; i++ {
		last = ts.do(http.MethodPost, "/v1/login", "", map[string]string{"username": "ana", "password": "x"}).Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t, core.NewDate(2025, 2, 10))

	rr := ts.do(http.MethodGet, "/v1/period", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ts.do(http.MethodGet, "/v1/period", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRecordSubmitHistoryFlow(t *testing.T) {
	ts := newTestServer(t, core.NewDate(2025, 2, 10))
	token := ts.login("ana")

	rr := ts.do(http.MethodGet, "/v1/period", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	period := decode(t, rr)
	assert.Equal(t, true, period["late"])
	assert.Equal(t, "2025-02-03", period["period"].(map[string]any)["start"])

	rr = ts.do(http.MethodPost, "/v1/transactions/meal", token, map[string]any{
		"date": "2025-02-04", "invoice_total": "30.00", "num_people": 2,
		"meal_type": "lunch", "collaborators": []string{"Ana", "Rui"},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	tx := decode(t, rr)["transaction"].(map[string]any)
	assert.Equal(t, 24.0, tx["amount"])
	assert.Equal(t, "expense", tx["type"])

	rr = ts.do(http.MethodPost, "/v1/transactions/service", token, map[string]any{
		"date": "2025-02-05", "reference": "1234", "amount": 50,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	// outside the open week: the date is reported before the empty form
	rr = ts.do(http.MethodPost, "/v1/transactions/other", token, map[string]any{"date": "2025-02-12"})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	fields := decode(t, rr)["fields"].([]any)
	require.Len(t, fields, 1)
	assert.Equal(t, "date", fields[0].(map[string]any)["field"])

	rr = ts.do(http.MethodPost, "/v1/transactions/other", token, map[string]any{"date": "2025-02-06"})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.NotEqual(t, "date", decode(t, rr)["fields"].([]any)[0].(map[string]any)["field"])

	rr = ts.do(http.MethodPost, "/v1/transactions/lottery", token, map[string]any{})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.do(http.MethodGet, "/v1/transactions", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	live := decode(t, rr)
	assert.Len(t, live["transactions"], 2)
	assert.Equal(t, 26.0, live["balance"].(map[string]any)["net"])

	rr = ts.do(http.MethodGet, "/v1/transactions.csv", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Body.String(), "Date,Type,Category,Description,Amount"))

	rr = ts.do(http.MethodPost, "/v1/reports", token, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	submitted := decode(t, rr)
	report := submitted["report"].(map[string]any)
	assert.Equal(t, "Report 1", report["number"])
	assert.Len(t, report["transactions"], 2)
	assert.Equal(t, "2025-02-10", submitted["next_period"].(map[string]any)["start"])

	// the new week has not ended yet
	rr = ts.do(http.MethodPost, "/v1/reports", token, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = ts.do(http.MethodGet, "/v1/reports", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode(t, rr)["reports"], 1)

	rr = ts.do(http.MethodGet, "/v1/reports/1", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(1), decode(t, rr)["sequence"])

	rr = ts.do(http.MethodGet, "/v1/reports/1.pdf", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF-")))

	rr = ts.do(http.MethodGet, "/v1/reports/7.pdf", token, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.do(http.MethodGet, "/v1/transactions", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode(t, rr)["transactions"])
}

func TestAdminRoutes(t *testing.T) {
	ts := newTestServer(t, core.NewDate(2025, 2, 10))
	user := ts.login("ana")
	admin := ts.login("boss")

	rr := ts.do(http.MethodPost, "/v1/transactions/purchase", user, map[string]any{
		"date": "2025-02-04", "what": "Tape", "amount": "7.50", "justification": "Event setup",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = ts.do(http.MethodGet, "/v1/admin/users", user, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.do(http.MethodGet, "/v1/admin/users", admin, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	users := decode(t, rr)["users"].([]any)
	require.Len(t, users, 1, "the admin's own ledger is never opened")
	assert.Equal(t, "ana", users[0].(map[string]any)["user"])
	assert.Equal(t, float64(1), users[0].(map[string]any)["pending"])

	rr = ts.do(http.MethodGet, "/v1/admin/users/ana/transactions", admin, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode(t, rr)["transactions"], 1)

	rr = ts.do(http.MethodGet, "/v1/admin/users/ana/reports", admin, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode(t, rr)["reports"])

	rr = ts.do(http.MethodGet, "/v1/admin/users/ana/reports/1.pdf", admin, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.do(http.MethodGet, "/v1/admin/overview.pdf", admin, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF-")))
}

func TestCatalog(t *testing.T) {
	ts := newTestServer(t, core.NewDate(2025, 2, 10))
	rr := ts.do(http.MethodGet, "/v1/catalog", ts.login("ana"), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	cat := decode(t, rr)
	assert.Len(t, cat["expense"], 5)
	assert.Len(t, cat["income"], 2)
	assert.Equal(t, 12.0, cat["meal_per_person_cap"])
	assert.NotEmpty(t, cat["roles"])
}

func TestSuspiciousRequestsRejected(t *testing.T) {
	ts := newTestServer(t, core.NewDate(2025, 2, 10))
	rr := ts.do(http.MethodGet, "/v1/.env", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, statusFor(ledger.ErrForbidden))
	assert.Equal(t, http.StatusNotFound, statusFor(ledger.ErrReportNotFound))
	assert.Equal(t, http.StatusConflict, statusFor(&ledger.PreconditionError{Reason: ledger.ErrFuturePeriod}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}

func TestExtractClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", extractClientIP(req))

	req.RemoteAddr = "198.51.100.7:1234"
	assert.Equal(t, "198.51.100.7", extractClientIP(req))
}

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC)
	rl := newRateLimiter(2, time.Minute)
	defer rl.stop()
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("203.0.113.9"))
	assert.True(t, rl.allow("203.0.113.9"))
	assert.False(t, rl.allow("203.0.113.9"))
	assert.True(t, rl.allow("198.51.100.7"), "keys are counted separately")

	now = now.Add(61 * time.Second)
	assert.True(t, rl.allow("203.0.113.9"), "a new window starts")

	now = now.Add(5 * time.Minute)
	rl.forgetExpired()
	assert.Empty(t, rl.buckets)
}

func TestUserLocksSerialise(t *testing.T) {
	locks := newUserLocks()
	unlock := locks.lock("ana")

	acquired := make(chan struct{})
	go func() {
		defer close(acquired)
		locks.lock("ana")()
	}()

	otherUnlock := locks.lock("rui")
	otherUnlock()

	select {
	case <-acquired:
		t.Fatal("second lock on the same user did not wait")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-acquired
}

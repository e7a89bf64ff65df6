package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"

	"carteira/internal/core"
)

// fakeSheets serves the subset of the Sheets v4 REST API the client uses.
type fakeSheets struct {
	mu      sync.Mutex
	sheets  map[string][][]any
	appends int
	creates int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req struct {
			Requests []struct {
				AddSheet struct {
					Properties struct {
						Title string `json:"title"`
					} `json:"properties"`
				} `json:"addSheet"`
			} `json:"requests"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.sheets[req.Requests[0].AddSheet.Properties.Title] = nil
		f.creates++
		writeJSON(w, map[string]any{"spreadsheetId": "sheet-id"})

	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		name := sheetName(strings.TrimSuffix(path, ":append"))
		if _, ok := f.sheets[name]; !ok {
			missingSheet(w)
			return
		}
		var vr struct {
			Values [][]any `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.sheets[name] = append(f.sheets[name], vr.Values...)
		f.appends++
		writeJSON(w, map[string]any{"updates": map[string]any{"updatedRange": "'" + name + "'!A2:K2"}})

	case r.Method == http.MethodPut:
		name := sheetName(path)
		var vr struct {
			Values [][]any `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.sheets[name] = append(vr.Values, f.sheets[name]...)
		writeJSON(w, map[string]any{})

	case r.Method == http.MethodGet:
		name := sheetName(path)
		rows, ok := f.sheets[name]
		if !ok {
			missingSheet(w)
			return
		}
		writeJSON(w, map[string]any{"values": rows})

	default:
		http.NotFound(w, r)
	}
}

// sheetName extracts the tab from ".../values/'2025 Relatorios'!A:K".
func sheetName(path string) string {
	i := strings.LastIndex(path, "/values/")
	rng := path[i+len("/values/"):]
	name, _, _ := strings.Cut(rng, "!")
	return strings.Trim(name, "'")
}

func missingSheet(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_, _ = io.WriteString(w, `{"error":{"code":400,"message":"Unable to parse range: missing","status":"INVALID_ARGUMENT"}}`)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{SpreadsheetID: "sheet-id"}, nil,
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func testReport() core.Report {
	txs := []core.Transaction{{
		ID: "1", Date: core.NewDate(2025, 2, 4), Type: core.Expense, Category: core.CategoryMeal,
		Description: "Lunch", Amount: core.Euro(20), Owner: "ana",
	}}
	return core.NewReport(1, core.NewPeriod(core.NewDate(2025, 2, 3)), core.NewDate(2025, 2, 10), txs)
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("New() error = %v, want missing GOOGLE_SPREADSHEET_ID", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), Config{SpreadsheetID: "x"}, nil)
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("New() error = %v", err)
	}
}

func TestAppendReport_CreatesYearSheet(t *testing.T) {
	fake := &fakeSheets{sheets: map[string][][]any{}}
	c := newTestClient(t, fake)
	ctx := context.Background()

	ref, err := c.AppendReport(ctx, "ana", testReport())
	if err != nil {
		t.Fatalf("AppendReport() error = %v", err)
	}
	if !strings.Contains(ref, "2025 Relatorios") {
		t.Errorf("ref = %q", ref)
	}
	if fake.creates != 1 || fake.appends != 1 {
		t.Errorf("creates = %d, appends = %d", fake.creates, fake.appends)
	}

	rows := fake.sheets["2025 Relatorios"]
	if len(rows) != 2 {
		t.Fatalf("rows = %v, want header and one report", rows)
	}
	if rows[0][0] != "Key" || rows[1][0] != "ana#1" {
		t.Errorf("rows = %v", rows)
	}
	if rows[1][8] != "-20.00" {
		t.Errorf("net = %v, want -20.00", rows[1][8])
	}

	ok, err := c.HasReport(ctx, "ana", testReport())
	if err != nil || !ok {
		t.Errorf("HasReport() = %v, %v; want true", ok, err)
	}
}

func TestHasReport_MissingSheet(t *testing.T) {
	c := newTestClient(t, &fakeSheets{sheets: map[string][][]any{}})
	ok, err := c.HasReport(context.Background(), "ana", testReport())
	if err != nil || ok {
		t.Errorf("HasReport() = %v, %v; want false, nil", ok, err)
	}
}

func TestNilServiceFails(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	if _, err := c.AppendReport(context.Background(), "ana", testReport()); err == nil {
		t.Error("expected error with nil service")
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Relatorios", 2025, "2025 Relatorios"},
		{"2024 Relatorios", 2025, "2024 Relatorios"},
		{"  Relatorios  ", 2026, "2026 Relatorios"},
		{"", 2025, ""},
		{"12345", 2025, "2025 12345"},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}

func TestQuoteSheet(t *testing.T) {
	if got := quoteSheet("Relatorios"); got != "Relatorios" {
		t.Errorf("quoteSheet = %q", got)
	}
	if got := quoteSheet("2025 Relatorios"); got != "'2025 Relatorios'" {
		t.Errorf("quoteSheet = %q", got)
	}
	if got := quoteSheet("Ana's"); got != "'Ana''s'" {
		t.Errorf("quoteSheet = %q", got)
	}
}

func TestContainsKey(t *testing.T) {
	values := [][]any{{"Key"}, {}, {" ana#1 "}, {"rui#2"}}
	if !containsKey(values, "ana#1") || !containsKey(values, "rui#2") {
		t.Error("expected keys to be found")
	}
	if containsKey(values, "ana#2") {
		t.Error("unexpected key")
	}
}

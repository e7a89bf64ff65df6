package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/resilience"
	ports "carteira/internal/sheets"
)

const defaultSheetName = "Relatorios"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// sheetBase is prefixed with the report's year, e.g. "2025 Relatorios".
	sheetBase string
	breaker   *gobreaker.CircuitBreaker
	logger    *log.Logger
}

// Ensure interface conformance
var _ ports.ReportSink = (*Client)(nil)

type Config struct {
	SpreadsheetID string
	SheetName     string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	id := strings.TrimSpace(cfg.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = log.Wrap(nil, log.ComponentSheets)
	} else {
		logger = logger.WithComponent(log.ComponentSheets)
	}

	if len(opts) == 0 {
		creds, err := serviceAccountCredentials(ctx, logger)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
			goption.WithHTTPClient(newHTTPClientWithPooling()),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	base := strings.TrimSpace(cfg.SheetName)
	if base == "" {
		base = defaultSheetName
	}
	return &Client{
		svc:           svc,
		spreadsheetID: id,
		sheetBase:     base,
		breaker:       resilience.NewCircuitBreaker("google-sheets", logger),
		logger:        logger,
	}, nil
}

// serviceAccountCredentials reads GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS, in that
// order.
func serviceAccountCredentials(ctx context.Context, logger *log.Logger) ([]byte, error) {
	inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		logger.InfoContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		logger.InfoContext(ctx, "Reading service account credentials", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

func (c *Client) sheetFor(r core.Report) string {
	return yearPrefixedName(c.sheetBase, r.Period.Start.Year())
}

// AppendReport adds r as one row of its year's sheet and returns the
// updated range.
func (c *Client) AppendReport(ctx context.Context, owner string, r core.Report) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	sheet := c.sheetFor(r)
	rng := fmt.Sprintf("%s!A:K", quoteSheet(sheet))
	vr := &gsheet.ValueRange{Values: [][]any{ports.Row(owner, r)}}

	appendRow := func() (any, error) {
		return c.breaker.Execute(func() (any, error) {
			return c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
				ValueInputOption("USER_ENTERED").
				InsertDataOption("INSERT_ROWS").
				Context(ctx).Do()
		})
	}

	out, err := appendRow()
	if err != nil && isMissingSheet(err) {
		if cerr := c.createSheet(ctx, sheet); cerr != nil {
			return "", fmt.Errorf("create sheet %s: %w", sheet, cerr)
		}
		out, err = appendRow()
	}
	if err != nil {
		return "", fmt.Errorf("append report to %s: %w", sheet, err)
	}

	ref := rng
	if resp, ok := out.(*gsheet.AppendValuesResponse); ok && resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.InfoContext(ctx, "Report appended to sheet",
		log.FieldUser, owner, log.FieldReport, r.Number, "range", ref)
	return ref, nil
}

// HasReport scans the key column of the report's year sheet. A sheet
// that does not exist yet holds no reports.
func (c *Client) HasReport(ctx context.Context, owner string, r core.Report) (bool, error) {
	if c.svc == nil {
		return false, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:A", quoteSheet(c.sheetFor(r)))
	out, err := c.breaker.Execute(func() (any, error) {
		return c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	})
	if err != nil {
		if isMissingSheet(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", rng, err)
	}
	resp, _ := out.(*gsheet.ValueRange)
	if resp == nil {
		return false, nil
	}
	return containsKey(resp.Values, ports.RowKey(owner, r.Sequence)), nil
}

// createSheet adds a tab for a new year and writes the header row.
func (c *Client) createSheet(ctx context.Context, name string) error {
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: name}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return err
	}

	header := make([]any, len(ports.Header))
	for i, h := range ports.Header {
		header[i] = h
	}
	rng := fmt.Sprintf("%s!A1:K1", quoteSheet(name))
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{header}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Created report sheet", "sheet", name)
	return nil
}

func containsKey(values [][]any, key string) bool {
	for _, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == key {
			return true
		}
	}
	return false
}

func isMissingSheet(err error) bool {
	return strings.Contains(err.Error(), "Unable to parse range")
}

// quoteSheet quotes sheet names with spaces for A1 notation.
func quoteSheet(name string) string {
	if strings.ContainsAny(name, " '") {
		return "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

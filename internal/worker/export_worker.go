package worker

import (
	"context"
	"fmt"
	"time"

	"carteira/internal/amqp"
	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/resilience"
	"carteira/internal/sheets"
)

// ReportSource is the read side of storage the worker needs.
type ReportSource interface {
	LoadHistory(ctx context.Context, user string) ([]core.Report, error)
	ListUsers(ctx context.Context) ([]string, error)
}

// ExportObserver counts export outcomes.
type ExportObserver interface {
	ReportExported(ok bool)
}

type nopObserver struct{}

func (nopObserver) ReportExported(bool) {}

// ExportWorker copies archived reports into a spreadsheet.
type ExportWorker struct {
	source   ReportSource
	sink     sheets.ReportSink
	observer ExportObserver
	logger   *log.Logger
	retry    resilience.RetryConfig
}

func NewExportWorker(source ReportSource, sink sheets.ReportSink, observer ExportObserver, logger *log.Logger) *ExportWorker {
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = log.Wrap(nil, log.ComponentWorker)
	} else {
		logger = logger.WithComponent(log.ComponentWorker)
	}
	return &ExportWorker{
		source:   source,
		sink:     sink,
		observer: observer,
		logger:   logger,
		retry:    resilience.RetryConfig{MaxRetries: 3, InitialBackoff: 500 * time.Millisecond},
	}
}

// HandleReportSubmitted processes a single report message from AMQP. A
// message naming a report that does not exist is dropped; any other
// failure is returned so the message is requeued.
func (w *ExportWorker) HandleReportSubmitted(ctx context.Context, msg *amqp.ReportSubmittedMessage) error {
	w.logger.InfoContext(ctx, "Processing report message",
		"message_id", msg.ID, log.FieldUser, msg.User, "sequence", msg.Sequence)

	history, err := w.source.LoadHistory(ctx, msg.User)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	report, ok := core.FindReport(history, msg.Sequence)
	if !ok {
		w.logger.WarnContext(ctx, "Report from message not found, dropping",
			log.FieldUser, msg.User, log.FieldReport, core.ReportNumber(msg.Sequence))
		return nil
	}

	_, err = w.export(ctx, msg.User, report)
	return err
}

// export appends report unless the sheet already has it. It reports
// whether a row was written.
func (w *ExportWorker) export(ctx context.Context, user string, report core.Report) (bool, error) {
	exists, err := w.sink.HasReport(ctx, user, report)
	if err != nil {
		w.observer.ReportExported(false)
		return false, fmt.Errorf("check sheet for %s: %w", report.Number, err)
	}
	if exists {
		w.logger.InfoContext(ctx, "Report already exported",
			log.FieldUser, user, log.FieldReport, report.Number)
		return false, nil
	}

	var ref string
	err = resilience.Retry(ctx, w.retry, func() error {
		var aerr error
		ref, aerr = w.sink.AppendReport(ctx, user, report)
		return aerr
	})
	if err != nil {
		w.observer.ReportExported(false)
		return false, fmt.Errorf("append %s to sheets: %w", report.Number, err)
	}
	w.observer.ReportExported(true)

	w.logger.InfoContext(ctx, "Successfully exported report",
		log.FieldOperation, log.OpExport,
		log.FieldUser, user,
		log.FieldReport, report.Number,
		"sheets_ref", ref,
		"net_cents", report.Summary.Net.Cents)
	return true, nil
}

// StartupSyncCheck exports every archived report missing from the sheet.
// It recovers from messages lost while the worker or broker was down.
func (w *ExportWorker) StartupSyncCheck(ctx context.Context) error {
	users, err := w.source.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users for startup check: %w", err)
	}

	exported, failed := 0, 0
	for _, user := range users {
		history, err := w.source.LoadHistory(ctx, user)
		if err != nil {
			fields := log.NewFields().
				WithOperation(log.OpStartup).
				WithError(err, log.ErrorTypeStorage)
			fields[log.FieldUser] = user
			w.logger.ErrorContext(ctx, "Failed to load history for startup sync", fields.ToArgs()...)
			failed++
			continue
		}
		for _, report := range history {
			if err := ctx.Err(); err != nil {
				return err
			}
			wrote, err := w.export(ctx, user, report)
			if err != nil {
				w.logger.ErrorContext(ctx, "Failed to export report during startup",
					log.FieldUser, user, log.FieldReport, report.Number, log.FieldError, err)
				failed++
				continue
			}
			if wrote {
				exported++
			}
		}
	}

	w.logger.InfoContext(ctx, "Startup sync completed",
		"users", len(users), "exported", exported, "errors", failed)
	return nil
}

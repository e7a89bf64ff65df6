package backend

import (
	"context"
	"errors"
	"fmt"

	"carteira/internal/amqp"
	"carteira/internal/log"
	gsheet "carteira/internal/sheets/google"
	"carteira/internal/sheets/memory"
	"carteira/internal/storage"
	"carteira/internal/storage/file"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
	// dial is swapped in tests
	dial func(url, exchange, queue string, logger *log.Logger) (*amqp.Client, error)
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.Wrap(nil, log.ComponentBackend)
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
		dial:   amqp.NewClient,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		repo storage.Repository
		err  error
	)
	switch config.Type {
	case SQLiteBackend:
		repo, err = f.createSQLiteRepository(config)
	case FileBackend:
		repo = f.createFileRepository(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	result := &BackendResult{Repository: repo, Cleanup: repo.Close}

	client := f.connectPublisher(ctx, config)
	if client != nil {
		result.Publisher = client
		result.Cleanup = func() error {
			return errors.Join(client.Close(), repo.Close())
		}
	}
	return result, nil
}

func (f *DefaultFactory) createSQLiteRepository(config Config) (storage.Repository, error) {
	var opts []storage.SQLiteOption
	if config.OnRecover != nil {
		opts = append(opts, storage.WithSQLiteRecovery(config.OnRecover))
	}
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return repo, nil
}

func (f *DefaultFactory) createFileRepository(config Config) storage.Repository {
	var opts []file.Option
	if config.OnRecover != nil {
		opts = append(opts, file.WithRecovery(config.OnRecover))
	}
	f.logger.Info("Initialized file backend", "data_directory", config.DataDirectory)
	return file.New(config.DataDirectory, opts...)
}

// connectPublisher dials the broker when one is configured. A broker that
// cannot be reached disables events rather than failing startup.
func (f *DefaultFactory) connectPublisher(ctx context.Context, config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := f.dial(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
	if err != nil {
		f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events",
			log.FieldError, err)
		return nil
	}
	f.logger.InfoContext(ctx, "Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}

// CreateSink implements Factory.CreateSink. Without a spreadsheet the
// worker exports into memory, which only makes sense for local runs.
func (f *DefaultFactory) CreateSink(ctx context.Context, config Config) (*SinkResult, error) {
	if config.GoogleSpreadsheetID == "" {
		f.logger.WarnContext(ctx, "GOOGLE_SPREADSHEET_ID not set, exporting to memory")
		return &SinkResult{Sink: memory.New(), Cleanup: func() error { return nil }}, nil
	}

	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID: config.GoogleSpreadsheetID,
		SheetName:     config.GoogleSheetName,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.InfoContext(ctx, "Initialized Google Sheets sink", "sheet", config.GoogleSheetName)
	return &SinkResult{Sink: cli, Remote: true, Cleanup: func() error { return nil }}, nil
}

// Package backend builds the storage, event and export backends selected
// by configuration.
package backend

import (
	"context"

	"carteira/internal/ledger"
	"carteira/internal/sheets"
	"carteira/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the repository, an optional publisher and a
// cleanup function releasing both.
type BackendResult struct {
	Repository storage.Repository
	// Publisher is nil when events are disabled or the broker was unreachable.
	Publisher ledger.ReportPublisher
	Cleanup   CleanupFunc
}

// SinkResult is the destination the export worker writes reports to.
type SinkResult struct {
	Sink    sheets.ReportSink
	Remote  bool
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	CreateSink(ctx context.Context, config Config) (*SinkResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// file
	DataDirectory string

	// sqlite
	SQLiteDBPath string

	// events, optional for both backends
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// export sink; memory when the spreadsheet is unset
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// OnRecover is told when a corrupt record is set aside.
	OnRecover storage.RecoveryFunc
}

// BackendType represents the type of backend
type BackendType string

const (
	FileBackend   BackendType = "file"
	SQLiteBackend BackendType = "sqlite"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case FileBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}

package backend

import (
	"errors"
	"fmt"

	"carteira/internal/config"
)

// ErrUnknownBackend is returned for a DATA_BACKEND value no factory handles.
var ErrUnknownBackend = errors.New("unknown storage backend")

// FromAppConfig narrows the process configuration to what the factory needs.
func FromAppConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, errors.New("backend: nil application config")
	}
	kind := BackendType(cfg.DataBackend)
	if !kind.IsValid() {
		return Config{}, fmt.Errorf("%w %q", ErrUnknownBackend, cfg.DataBackend)
	}
	return Config{
		Type:                kind,
		DataDirectory:       cfg.DataDir,
		SQLiteDBPath:        cfg.SQLiteDBPath,
		AMQPURL:             cfg.AMQPURL,
		AMQPExchange:        cfg.AMQPExchange,
		AMQPQueue:           cfg.AMQPQueue,
		GoogleSpreadsheetID: cfg.GoogleSpreadsheetID,
		GoogleSheetName:     cfg.GoogleSheetName,
	}, nil
}

// Validate reports every missing setting for the selected backend at once.
func (c Config) Validate() error {
	var errs []error
	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			errs = append(errs, errors.New("sqlite backend needs a database path"))
		}
	case FileBackend:
		if c.DataDirectory == "" {
			errs = append(errs, errors.New("file backend needs a data directory"))
		}
	default:
		errs = append(errs, fmt.Errorf("%w %q", ErrUnknownBackend, c.Type))
	}
	if c.AMQPURL != "" {
		if c.AMQPExchange == "" {
			errs = append(errs, errors.New("report events need an AMQP exchange"))
		}
		if c.AMQPQueue == "" {
			errs = append(errs, errors.New("report events need an AMQP queue"))
		}
	}
	return errors.Join(errs...)
}

// TypeNames lists the accepted DATA_BACKEND values.
func TypeNames() []string {
	return []string{FileBackend.String(), SQLiteBackend.String()}
}

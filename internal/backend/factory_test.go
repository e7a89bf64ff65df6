package backend

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carteira/internal/amqp"
	"carteira/internal/config"
	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/sheets/memory"
)

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db", DataDir: "d", AMQPURL: "amqp://h", AMQPExchange: "e", AMQPQueue: "q"}
	got, err := FromAppConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, got.Type)
	assert.Equal(t, "x.db", got.SQLiteDBPath)
	assert.Equal(t, "q", got.AMQPQueue)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.ErrorIs(t, err, ErrUnknownBackend)
	_, err = FromAppConfig(nil)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"file", Config{Type: FileBackend, DataDirectory: "data"}, false},
		{"file without dir", Config{Type: FileBackend}, true},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"amqp without queue", Config{Type: FileBackend, DataDirectory: "d", AMQPURL: "amqp://h", AMQPExchange: "e"}, true},
		{"unknown", Config{Type: "memory"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigValidateReportsAllProblems(t *testing.T) {
	err := Config{Type: SQLiteBackend, AMQPURL: "amqp://h"}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database path")
	assert.Contains(t, err.Error(), "exchange")
	assert.Contains(t, err.Error(), "queue")
}

func TestTypeNames(t *testing.T) {
	assert.Equal(t, []string{"file", "sqlite"}, TypeNames())
}

func TestCreateFileBackend(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)
	res, err := f.CreateBackend(ctx, Config{Type: FileBackend, DataDirectory: t.TempDir()})
	require.NoError(t, err)
	defer res.Cleanup()

	assert.Nil(t, res.Publisher)
	require.NoError(t, res.Repository.SavePeriod(ctx, "ana", core.PeriodState{
		Period: core.NewPeriod(core.NewDate(2025, 2, 3)), Counter: 1,
	}))
	users, err := res.Repository.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ana"}, users)
}

func TestCreateSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)
	res, err := f.CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "c.db")})
	require.NoError(t, err)
	defer res.Cleanup()

	_, ok, err := res.Repository.LoadPeriod(ctx, "ana")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBrokerFailureDisablesEvents(t *testing.T) {
	f := NewFactory(nil)
	dialed := 0
	f.dial = func(string, string, string, *log.Logger) (*amqp.Client, error) {
		dialed++
		return nil, errors.New("connection refused")
	}
	res, err := f.CreateBackend(context.Background(), Config{
		Type: FileBackend, DataDirectory: t.TempDir(),
		AMQPURL: "amqp://localhost", AMQPExchange: "carteira", AMQPQueue: "report_exports",
	})
	require.NoError(t, err)
	defer res.Cleanup()

	assert.Equal(t, 1, dialed)
	assert.Nil(t, res.Publisher)
}

func TestCreateSinkDefaultsToMemory(t *testing.T) {
	res, err := NewFactory(nil).CreateSink(context.Background(), Config{})
	require.NoError(t, err)
	assert.False(t, res.Remote)
	assert.IsType(t, &memory.Store{}, res.Sink)
	assert.NoError(t, res.Cleanup())
}

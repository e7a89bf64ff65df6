package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"carteira/internal/backend"
	"carteira/internal/cli"
	"carteira/internal/config"
	"carteira/internal/log"
	"carteira/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:               "carteira-admin",
	Short:             "Manage carteira users and archived reports",
	PersistentPreRunE: initConfig,
	SilenceUsage:      true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("data-backend", "", "storage backend ("+strings.Join(backend.TypeNames(), ", ")+")")
	flags.String("data-dir", "", "data directory for the file backend")
	flags.String("sqlite-db-path", "", "database path for the sqlite backend")
	flags.String("users-file", "", "users directory file")
	flags.String("log-level", "", "log level (debug, info, warn, error)")

	// flags win over the environment names the server reads
	_ = viper.BindPFlag("DATA_BACKEND", flags.Lookup("data-backend"))
	_ = viper.BindPFlag("DATA_DIR", flags.Lookup("data-dir"))
	_ = viper.BindPFlag("SQLITE_DB_PATH", flags.Lookup("sqlite-db-path"))
	_ = viper.BindPFlag("USERS_FILE", flags.Lookup("users-file"))
	_ = viper.BindPFlag("LOG_LEVEL", flags.Lookup("log-level"))

	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(periodCmd())
	rootCmd.AddCommand(reportsCmd())
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	appConfig *config.Config
	logger    *log.Logger
)

func initConfig(_ *cobra.Command, _ []string) error {
	cli.LoadEnvFile()
	viper.AutomaticEnv()

	cfg := config.Load()
	if v := viper.GetString("DATA_BACKEND"); v != "" {
		cfg.DataBackend = v
	}
	if v := viper.GetString("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := viper.GetString("SQLITE_DB_PATH"); v != "" {
		cfg.SQLiteDBPath = v
	}
	if v := viper.GetString("USERS_FILE"); v != "" {
		cfg.UsersFile = v
	}
	// events are never published from the admin tool
	cfg.AMQPURL = ""

	if err := cfg.Validate(); err != nil {
		return err
	}

	lc := log.DefaultConfig()
	lc.Level = log.ParseLevel(viper.GetString("LOG_LEVEL"))
	lc.Output = os.Stderr
	logger = log.New(lc)
	log.SetDefault(logger)

	appConfig = cfg
	return nil
}

// openRepository opens the configured store read-write.
func openRepository(ctx context.Context) (storage.Repository, error) {
	bcfg, err := backend.FromAppConfig(appConfig)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}
	return res.Repository, nil
}

func closeRepository(repo storage.Repository) {
	if err := repo.Close(); err != nil {
		logger.Error("Failed to close storage", log.FieldError, err)
	}
}

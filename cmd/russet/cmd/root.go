// Package cmd contains every russet CLI subcommand.
package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"russet/internal/config"
	"russet/internal/infra/db"
	"russet/internal/infra/persistence/sqlite"
	"russet/internal/observability/logging"
	"russet/internal/repository"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "russet",
	Short: "Russet is a multi-user feed aggregator",
	Long: `russet serves a feed aggregator over HTTP and schedules per-feed
polling in the background.

Example usage:
  russet run                         # start the server (default command)
  russet add-user alice secret123    # create a member account
  russet add-feed https://example.com/feed.xml`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./russet.yaml)")
	rootCmd.PersistentFlags().String("db-file", "", "sqlite database path")
	rootCmd.PersistentFlags().String("listen-address", "", "HTTP listen address")
	rootCmd.PersistentFlags().Bool("disable-logins", false, "serve in read-only mode")

	_ = viper.BindPFlag("db_file", rootCmd.PersistentFlags().Lookup("db-file"))
	_ = viper.BindPFlag("listen_address", rootCmd.PersistentFlags().Lookup("listen-address"))
	_ = viper.BindPFlag("disable_logins", rootCmd.PersistentFlags().Lookup("disable-logins"))
}

func initConfig() error {
	logger = logging.NewLogger()

	loaded, err := config.Load(viper.GetViper(), cfgFile)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	cfg = loaded
	return nil
}

// openStore opens the SQLite database, migrates it, and returns both the
// raw handle (for health checks and clean shutdown) and the repository
// Store built on top of it. Every subcommand besides `run` uses this to
// get a one-shot Store for a single operation.
func openStore(ctx context.Context) (*sql.DB, repository.Store, error) {
	conn, err := db.Open(ctx, cfg.DBFile, db.DefaultConnectionConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.MigrateUp(conn); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("migrating database: %w", err)
	}
	return conn, sqlite.New(conn), nil
}

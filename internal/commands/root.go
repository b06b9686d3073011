package commands

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/atharvakonge/paper-trading-simulator/internal/config"
	"github.com/atharvakonge/paper-trading-simulator/internal/db"
	"github.com/atharvakonge/paper-trading-simulator/internal/logger"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	envFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "paper-trader",
	Short: "Paper trading simulator backend",
	Long: `Backend for a paper trading simulator.

Users trade virtual balances against live crypto prices polled from a
Binance-compatible feed. Prices are persisted with their history and pushed
to WebSocket clients after every sync cycle.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
}

// Execute runs the command tree; `serve` is the default
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "override LOG_LEVEL (debug, info, warn, error)")
}

// bootstrap loads configuration, builds the logger and opens the database
func bootstrap(ctx context.Context) (config.Config, *logrus.Logger, *sql.DB, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return config.Config{}, nil, nil, err
	}

	conn, err := db.Open(ctx, cfg.DB)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	log.WithFields(logrus.Fields{"host": cfg.DB.Host, "database": cfg.DB.Name}).Info("Connected to PostgreSQL")
	return cfg, log, conn, nil
}

package commands

import (
	"context"

	"github.com/atharvakonge/paper-trading-simulator/internal/accounts"
	"github.com/atharvakonge/paper-trading-simulator/internal/config"
	"github.com/atharvakonge/paper-trading-simulator/internal/db"
	"github.com/atharvakonge/paper-trading-simulator/internal/models"
	"github.com/atharvakonge/paper-trading-simulator/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var defaultAssets = []models.Asset{
	{Ticker: "BTC", Name: "Bitcoin", FeedSymbol: "BTCUSDT", CurrentPrice: decimal.NewFromInt(40000), IsActive: true},
	{Ticker: "ETH", Name: "Ethereum", FeedSymbol: "ETHUSDT", CurrentPrice: decimal.NewFromInt(2200), IsActive: true},
	{Ticker: "SOL", Name: "Solana", FeedSymbol: "SOLUSDT", CurrentPrice: decimal.NewFromInt(90), IsActive: true},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the admin account and default assets",
	Long:  "Create the admin account and the BTC, ETH and SOL assets when they do not exist yet.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, log, conn, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := db.Migrate(ctx, conn); err != nil {
			return err
		}
		return seed(ctx, store.NewPostgres(conn), cfg.Seed, log)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func seed(ctx context.Context, st store.Store, cfg config.SeedConfig, log *logrus.Logger) error {
	admin, created, err := accounts.NewService(st, log).EnsureAdmin(ctx, models.RegisterRequest{
		Username: cfg.AdminUsername,
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
	})
	if err != nil {
		return err
	}
	if created {
		log.WithField("username", admin.Username).Info("Admin user created")
	}

	return st.InTx(ctx, func(tx store.Tx) error {
		for _, a := range defaultAssets {
			if _, err := tx.GetAssetByTicker(ctx, a.Ticker); err == nil {
				continue
			} else if !models.IsNotFound(err) {
				return err
			}
			if _, err := tx.CreateAsset(ctx, a); err != nil {
				return err
			}
			log.WithField("ticker", a.Ticker).Info("Asset seeded")
		}
		return nil
	})
}

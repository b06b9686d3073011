package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/atharvakonge/paper-trading-simulator/internal/accounts"
	"github.com/atharvakonge/paper-trading-simulator/internal/assets"
	"github.com/atharvakonge/paper-trading-simulator/internal/cache"
	"github.com/atharvakonge/paper-trading-simulator/internal/db"
	"github.com/atharvakonge/paper-trading-simulator/internal/feed"
	"github.com/atharvakonge/paper-trading-simulator/internal/handlers"
	"github.com/atharvakonge/paper-trading-simulator/internal/market"
	"github.com/atharvakonge/paper-trading-simulator/internal/realtime"
	"github.com/atharvakonge/paper-trading-simulator/internal/store"
	"github.com/atharvakonge/paper-trading-simulator/internal/trading"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serverPort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, WebSocket hub and market sync loop",
	Long: `Start every component of the simulator:
  - REST API for trading, wallets and asset administration
  - WebSocket endpoint streaming market updates
  - background market sync loop polling the price feed
  - bounded trade worker pool

Examples:
  paper-trader serve
  paper-trader serve --port 9090 --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serverPort, "port", "p", "", "override SERVER_PORT")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, conn, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	if serverPort != "" {
		cfg.Server.Port = serverPort
	}
	log.Info("Starting paper trading simulator")

	if err := db.Migrate(ctx, conn); err != nil {
		conn.Close()
		return err
	}
	st := store.NewPostgres(conn)
	defer st.Close()

	broadcaster := realtime.NewBroadcaster(log)
	defer broadcaster.Close()

	priceFeed := feed.NewClient(cfg.Feed.BaseURL, cfg.Feed.Timeout, log)

	candles, err := cache.New(1000, cfg.Cache.CandleTTL)
	if err != nil {
		return err
	}
	defer candles.Close()

	engine := trading.NewEngine(st, log)
	processor := trading.NewProcessor(engine, cfg.Trade.Workers, cfg.Trade.QueueSize, log)
	processor.Start()
	defer processor.Stop()

	if cfg.Sync.Enabled {
		loop := market.NewSyncLoop(st, priceFeed, broadcaster, cfg.Sync.Interval, cfg.Feed.Timeout, log)
		task := loop.Start(context.Background())
		defer task.Stop()
	} else {
		log.Warn("Market sync disabled, prices will not update")
	}

	gin.SetMode(cfg.Server.GinMode)
	h := handlers.New(
		engine,
		processor,
		assets.NewService(st, priceFeed, candles, log),
		accounts.NewService(st, log),
		broadcaster,
		log,
	)
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: h.Router(log),
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Server.Port).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.WithError(err).Error("HTTP server failed")
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server did not shut down cleanly")
	}

	log.WithFields(logrus.Fields{"subscribers": broadcaster.Len()}).Info("Server stopped")
	return nil
}

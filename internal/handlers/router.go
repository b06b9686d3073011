package handlers

import (
	"net/http"

	"github.com/atharvakonge/paper-trading-simulator/internal/accounts"
	"github.com/atharvakonge/paper-trading-simulator/internal/assets"
	"github.com/atharvakonge/paper-trading-simulator/internal/logger"
	"github.com/atharvakonge/paper-trading-simulator/internal/realtime"
	"github.com/atharvakonge/paper-trading-simulator/internal/trading"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Handler holds the services behind the HTTP API
type Handler struct {
	engine      *trading.Engine
	processor   *trading.Processor
	assets      *assets.Service
	accounts    *accounts.Service
	broadcaster *realtime.Broadcaster
	log         *logrus.Entry
}

func New(engine *trading.Engine, processor *trading.Processor, assetSvc *assets.Service, accountSvc *accounts.Service, b *realtime.Broadcaster, log *logrus.Logger) *Handler {
	return &Handler{
		engine:      engine,
		processor:   processor,
		assets:      assetSvc,
		accounts:    accountSvc,
		broadcaster: b,
		log:         log.WithField("component", "handlers"),
	}
}

// Router wires every route onto a new gin engine
func (h *Handler) Router(log *logrus.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), logger.Middleware(log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "subscribers": h.broadcaster.Len()})
	})
	router.GET("/ws", h.HandleWebSocket)

	api := router.Group("/api")
	{
		api.POST("/auth/register", h.Register)

		authed := api.Group("", h.RequireUser())
		authed.GET("/auth/me", h.Me)

		trade := authed.Group("/trade")
		trade.POST("/buy", h.Buy)
		trade.POST("/sell", h.Sell)
		trade.GET("/wallet", h.Wallet)
		trade.GET("/history", h.History)
		trade.POST("/reset-account", h.ResetAccount)

		api.GET("/assets", h.ListAssets)
		api.GET("/assets/:id", h.GetAsset)
		api.GET("/assets/:id/klines", h.Klines)
		api.GET("/assets/:id/history", h.PriceHistory)

		admin := authed.Group("/assets", h.RequireAdmin())
		admin.GET("/admin/all", h.ListAllAssets)
		admin.POST("", h.CreateAsset)
		admin.PUT("/:id", h.UpdateAsset)
		admin.PATCH("/:id/toggle", h.ToggleAsset)
		admin.DELETE("/:id", h.DeleteAsset)
	}

	return router
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/atharvakonge/paper-trading-simulator/internal/models"
	"github.com/atharvakonge/paper-trading-simulator/internal/trading"
	"github.com/gin-gonic/gin"
)

const defaultHistoryLimit = 50

// Buy handles POST /api/trade/buy
func (h *Handler) Buy(c *gin.Context) {
	h.trade(c, models.SideBuy)
}

// Sell handles POST /api/trade/sell
func (h *Handler) Sell(c *gin.Context) {
	h.trade(c, models.SideSell)
}

func (h *Handler) trade(c *gin.Context, side models.TradeSide) {
	var req models.TradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := currentUser(c)
	tr, err := h.processor.Submit(c.Request.Context(), trading.Order{
		UserID: user.ID,
		Ticker: req.AssetTicker,
		Amount: req.Amount,
		Side:   side,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Trade executed successfully",
		"transaction": tr,
		"total":       tr.Amount.Mul(tr.PriceAtTransaction),
	})
}

// Wallet handles GET /api/trade/wallet
func (h *Handler) Wallet(c *gin.Context) {
	w, err := h.engine.Wallet(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// History handles GET /api/trade/history?limit=N
func (h *Handler) History(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	txs, err := h.engine.History(c.Request.Context(), currentUser(c).ID, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

// ResetAccount handles POST /api/trade/reset-account
func (h *Handler) ResetAccount(c *gin.Context) {
	res, err := h.engine.ResetAccount(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Account reset successfully",
		"result":  res,
	})
}

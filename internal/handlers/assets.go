package handlers

import (
	"net/http"
	"strconv"

	"github.com/atharvakonge/paper-trading-simulator/internal/assets"
	"github.com/atharvakonge/paper-trading-simulator/internal/models"
	"github.com/gin-gonic/gin"
)

func assetID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid asset id"})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw, ok := c.GetQuery(key)
	if !ok {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": key + " must be an integer"})
		return 0, false
	}
	return n, true
}

// ListAssets handles GET /api/assets
func (h *Handler) ListAssets(c *gin.Context) {
	list, err := h.assets.ListActive(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// ListAllAssets handles GET /api/assets/admin/all
func (h *Handler) ListAllAssets(c *gin.Context) {
	list, err := h.assets.ListAll(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetAsset(c *gin.Context) {
	id, ok := assetID(c)
	if !ok {
		return
	}
	a, err := h.assets.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// Klines handles GET /api/assets/:id/klines?interval=1h&limit=100
func (h *Handler) Klines(c *gin.Context) {
	id, ok := assetID(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", assets.DefaultCandleLimit)
	if !ok {
		return
	}

	candles, err := h.assets.Candles(c.Request.Context(), id, c.DefaultQuery("interval", "1h"), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, candles)
}

// PriceHistory handles GET /api/assets/:id/history?limit=100
func (h *Handler) PriceHistory(c *gin.Context) {
	id, ok := assetID(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", assets.DefaultHistoryLimit)
	if !ok {
		return
	}

	points, err := h.assets.PriceHistory(c.Request.Context(), id, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, points)
}

func (h *Handler) CreateAsset(c *gin.Context) {
	var req models.AssetCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a, err := h.assets.Create(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *Handler) UpdateAsset(c *gin.Context) {
	id, ok := assetID(c)
	if !ok {
		return
	}
	var req models.AssetUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a, err := h.assets.Update(c.Request.Context(), id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) ToggleAsset(c *gin.Context) {
	id, ok := assetID(c)
	if !ok {
		return
	}
	a, err := h.assets.ToggleActive(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAsset(c *gin.Context) {
	id, ok := assetID(c)
	if !ok {
		return
	}
	res, err := h.assets.Delete(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Asset deleted", "result": res})
}

package handlers

import (
	"net/http"

	"github.com/atharvakonge/paper-trading-simulator/internal/models"
	"github.com/gin-gonic/gin"
)

const userKey = "user"

// RequireUser authenticates the request with HTTP Basic credentials
func (h *Handler) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", `Basic realm="paper-trader"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		user, err := h.accounts.Authenticate(c.Request.Context(), username, password)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// RequireAdmin must run after RequireUser
func (h *Handler) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !currentUser(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin privileges required"})
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) models.User {
	v, _ := c.Get(userKey)
	u, _ := v.(models.User)
	return u
}

// Register handles POST /api/auth/register
func (h *Handler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.accounts.Register(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// Me handles GET /api/auth/me
func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

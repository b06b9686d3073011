package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/atharvakonge/paper-trading-simulator/internal/models"
	"github.com/atharvakonge/paper-trading-simulator/internal/realtime"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const statusInterval = 2 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the UI is served from another origin in development
	},
}

func (h *Handler) serverStatus() models.ServerStatus {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return models.ServerStatus{
		Type:        models.MessageServerStatus,
		Goroutines:  runtime.NumGoroutine(),
		HeapMB:      float64(mem.HeapAlloc) / (1 << 20),
		Subscribers: h.broadcaster.Len(),
	}
}

// HandleWebSocket handles GET /ws. The client receives market_update broadcasts and a
// server_status message every two seconds until it disconnects.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	sub := h.broadcaster.Subscribe(realtime.NewWSConn(ws))
	defer h.broadcaster.Unsubscribe(sub)

	// Reads only detect disconnects; client messages are ignored
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	if err := sub.Send(h.serverStatus()); err != nil {
		return
	}
	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			if err := sub.Send(h.serverStatus()); err != nil {
				return
			}
		}
	}
}

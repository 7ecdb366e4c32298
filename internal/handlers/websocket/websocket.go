// internal/handlers/websocket/websocket.go
package handlers

import (
	"net/http"
	"time"

	"dedupe-service/internal/middleware"
	xerrors "dedupe-service/internal/pkg/errors"
	"dedupe-service/internal/pkg/response"
	ws "dedupe-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketHandler upgrades operator connections onto the hub's live feed.
type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewWebSocketHandler(hub *ws.Hub, allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return middleware.OriginAllowed(allowedOrigins, r.Header.Get("Origin"))
			},
		},
		logger: logger,
	}
}

// HandleConnection authenticates before upgrading. A rejected token gets a
// JSON 401, not a socket; a validator failure gets its mapped status.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	auth, err := h.hub.AuthenticateClient(c.Request.Context(), middleware.ExtractToken(c))
	if err != nil {
		h.logger.Warn("websocket authentication failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		if xerrors.Is(err, xerrors.ErrUnauthorized) {
			response.Error(c, http.StatusUnauthorized, "authentication failed", err)
			return
		}
		response.FromError(c, "failed to validate token", err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already answered the request.
		h.logger.Warn("websocket upgrade failed",
			zap.Error(err),
			zap.String("operator_id", auth.OperatorID),
			zap.String("origin", c.GetHeader("Origin")),
		)
		return
	}

	client := ws.NewClient(h.hub, conn, auth)
	select {
	case h.hub.Register <- client:
	case <-h.hub.Done():
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

func (h *WebSocketHandler) GetStats(c *gin.Context) {
	response.Success(c, http.StatusOK, "websocket stats", gin.H{
		"hub":       h.hub.Stats(),
		"timestamp": time.Now().UTC(),
	})
}

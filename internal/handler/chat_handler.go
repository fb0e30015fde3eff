package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/schooltest/quizbot/internal/transport"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// ChatHandler upgrades gateway connections and hands them to the hub.
type ChatHandler struct {
	hub      *transport.Hub
	dispatch transport.Dispatch
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(hub *transport.Hub, dispatch transport.Dispatch, log zerolog.Logger, allowedOrigins []string) *ChatHandler {
	return &ChatHandler{
		hub:      hub,
		dispatch: dispatch,
		log:      log.With().Str("component", "chat_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// Stream godoc
// WS /ws/v1/gateway
// Upgrades to WebSocket and serves a chat gateway connection. Each
// gateway forwards user updates inbound and receives send/edit events
// outbound until the socket closes.
func (h *ChatHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	h.hub.Serve(c.Request.Context(), conn, h.dispatch)
}

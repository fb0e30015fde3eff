package transport

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"

	"github.com/schooltest/quizbot/internal/chat"
)

// Dispatch handles one inbound user update.
type Dispatch func(ctx context.Context, u chat.Update)

// Serve runs the read loop for one upgraded gateway connection until
// it closes. Updates are dispatched sequentially, so per-user ordering
// within a connection is preserved.
func (h *Hub) Serve(ctx context.Context, ws *websocket.Conn, dispatch Dispatch) {
	conn := newConn(ws, h.logger)
	defer func() {
		h.drop(conn)
		conn.close()
	}()

	h.logger.Info().Str("remote", ws.RemoteAddr().String()).Msg("gateway connected")

	for {
		var raw json.RawMessage
		if err := conn.ReadJSON(&raw); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn().Err(err).Msg("unexpected gateway close")
			} else {
				h.logger.Debug().Msg("gateway disconnected")
			}
			return
		}

		var env RequestEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			conn.WriteError("malformed frame")
			continue
		}

		switch env.Action {
		case ActionPing:
			conn.enqueue(PongEvent{Event: EventPong})
		case ActionUpdate:
			var req UpdateRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				conn.WriteError("malformed update")
				continue
			}
			if req.UserID == "" || req.ChatID == "" {
				conn.WriteError("user_id and chat_id are required")
				continue
			}
			h.bind(req.ChatID, conn)
			dispatch(ctx, req.Update)
		default:
			h.logger.Warn().Str("action", string(env.Action)).Msg("unknown action")
			conn.WriteError("unknown action: " + string(env.Action))
		}
	}
}

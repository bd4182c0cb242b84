package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/quickchess/server/internal/game"
	"github.com/quickchess/server/internal/identity"
)

// Inbound message types on the push channel.
const (
	messageJoin   = "join"
	messageMove   = "move"
	messageResign = "resign"
)

// inboundMessage is a client signal on an established session connection.
// Session ID and identity come from the connection, not the payload.
type inboundMessage struct {
	Type      string `json:"type"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Promotion string `json:"promotion,omitempty"`
}

// WebSocketHandler upgrades observer connections and routes their inbound
// signals to the coordinator.
type WebSocketHandler struct {
	hub           *Hub
	coordinator   Coordinator
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates the session push-channel handler.
func NewWebSocketHandler(h *Hub, coordinator Coordinator, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		hub:           h,
		coordinator:   coordinator,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// wsSink adapts a websocket connection to the hub's Sink. Writes are
// serialized; the websocket library permits only one concurrent writer.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) Send(ctx context.Context, frame *Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Write(ctx, websocket.MessageText, data)
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := r.URL.Query().Get("session_id")
	slog.Info("WebSocket connection request", "user_id", userID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if sessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sink := &wsSink{conn: ws}
	if err := h.hub.Register(ctx, sessionID, sink); err != nil {
		h.sendError(ctx, sink, err)
		return
	}
	defer h.hub.Remove(sink)

	h.readLoop(ctx, ws, sink, sessionID, userID)
	slog.Info("Observer connection closed", "user_id", userID, "session_id", sessionID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, sink *wsSink, sessionID, userID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendMalformed(ctx, sink, "message is not valid JSON")
			continue
		}

		h.dispatch(ctx, sink, sessionID, userID, msg)
	}
}

// dispatch routes one inbound message to the coordinator. Accepted
// transitions reach every observer, this one included, through the
// coordinator's own broadcast; only errors are sent back directly.
func (h *WebSocketHandler) dispatch(ctx context.Context, sink *wsSink, sessionID, userID string, msg inboundMessage) {
	switch msg.Type {
	case messageJoin:
		if _, err := h.coordinator.JoinSession(ctx, sessionID, userID); err != nil {
			h.sendError(ctx, sink, err)
		}

	case messageMove:
		if msg.From == "" || msg.To == "" {
			h.sendMalformed(ctx, sink, "move requires from and to squares")
			return
		}
		if _, err := h.coordinator.ApplyMove(ctx, sessionID, userID, msg.From, msg.To, msg.Promotion); err != nil {
			h.sendError(ctx, sink, err)
		}

	case messageResign:
		if _, err := h.coordinator.Resign(ctx, sessionID, userID); err != nil {
			h.sendError(ctx, sink, err)
		}

	default:
		h.sendMalformed(ctx, sink, "unknown message type")
	}
}

func (h *WebSocketHandler) sendError(ctx context.Context, sink *wsSink, err error) {
	frame := &Frame{
		Type: FrameSessionError,
		Error: &ErrorPayload{
			Message: err.Error(),
			Code:    game.CodeOf(err),
		},
	}
	if sendErr := sink.Send(ctx, frame); sendErr != nil {
		slog.Debug("Failed to send error frame", "error", sendErr)
	}
}

func (h *WebSocketHandler) sendMalformed(ctx context.Context, sink *wsSink, message string) {
	frame := &Frame{
		Type:  FrameSessionError,
		Error: &ErrorPayload{Message: message, Code: "MALFORMED"},
	}
	if sendErr := sink.Send(ctx, frame); sendErr != nil {
		slog.Debug("Failed to send error frame", "error", sendErr)
	}
}

package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/attaboy/muteregistry/internal/auth"
	"github.com/attaboy/muteregistry/internal/infra"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 90 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// FeedHandler streams restriction events to connected moderators over WebSocket.
type FeedHandler struct {
	hub      *infra.WSHub
	room     string
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewFeedHandler creates a FeedHandler that joins every connection to room.
// allowedOrigin "*" accepts any Origin header.
func NewFeedHandler(hub *infra.WSHub, room, allowedOrigin string, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{
		hub:  hub,
		room: room,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "*" || origin == "" || origin == allowedOrigin
			},
		},
		logger: logger,
	}
}

// Connect handles GET /admin/restrictions/feed.
func (h *FeedHandler) Connect(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn("feed upgrade failed", "error", err)
		return
	}

	conn := &infra.WSConn{
		ID:      uuid.New().String(),
		Subject: auth.SubjectFromContext(r.Context()),
		Send:    make(chan []byte, sendBufferSize),
	}
	if !h.hub.Join(h.room, conn) {
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		ws.Close()
		return
	}
	h.logger.Info("feed connected", "conn_id", conn.ID, "subject", conn.Subject)

	go h.writePump(ws, conn)
	go h.readPump(ws, conn)
}

// readPump drains client frames so control messages are processed. The feed is
// one-way; anything the client sends is discarded.
func (h *FeedHandler) readPump(ws *websocket.Conn, conn *infra.WSConn) {
	defer func() {
		h.hub.Leave(h.room, conn.ID)
		ws.Close()
	}()

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("feed closed unexpectedly", "conn_id", conn.ID, "error", err)
			}
			return
		}
	}
}

func (h *FeedHandler) writePump(ws *websocket.Conn, conn *infra.WSConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case msg, ok := <-conn.Send:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the queue.
				ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package handler

import (
	"net/http"

	"offline-cart-sync/internal/logger"
	"offline-cart-sync/internal/websocket"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// SnapshotFunc produces the state sent to a client right after it connects.
type SnapshotFunc func() interface{}

type WebSocketHandler struct {
	hub      *websocket.Hub
	snapshot SnapshotFunc
	upgrader ws.Upgrader
	log      *zap.SugaredLogger
}

func NewWebSocketHandler(hub *websocket.Hub, readBuffer, writeBuffer int, snapshot SnapshotFunc, log *zap.SugaredLogger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		snapshot: snapshot,
		upgrader: ws.Upgrader{
			ReadBufferSize:  readBuffer,
			WriteBufferSize: writeBuffer,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: logger.OrNop(log),
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("Failed to upgrade websocket connection", "error", err)
		return
	}

	client := websocket.NewClient(uuid.New().String(), conn, h.hub)

	// Queued before registration so it is the first frame the client sees.
	if h.snapshot != nil {
		msg, err := websocket.NewMessage(websocket.TypeSnapshot, h.snapshot())
		if err == nil {
			err = client.Enqueue(msg)
		}
		if err != nil {
			h.log.Errorw("Failed to queue snapshot", "error", err)
		}
	}

	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

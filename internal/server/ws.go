package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ayusman/abhinaya/internal/app"
)

const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Subscriber delivers per-frame updates. *app.App implements it.
type Subscriber interface {
	Subscribe() (<-chan app.Update, func())
}

// PosesHandler pushes per-frame face poses and overlay state over WebSocket.
type PosesHandler struct {
	source Subscriber
	logger *zap.SugaredLogger
}

// NewPosesHandler creates a new PosesHandler.
func NewPosesHandler(source Subscriber, logger *zap.SugaredLogger) *PosesHandler {
	return &PosesHandler{source: source, logger: logger}
}

// ServeHTTP upgrades the connection and forwards updates until either side
// hangs up.
func (h *PosesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	updates, unsubscribe := h.source.Subscribe()
	defer unsubscribe()

	// Drain client messages so a close frame is noticed.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(u); err != nil {
				h.logger.Debugw("websocket write", "error", err)
				return
			}
		}
	}
}

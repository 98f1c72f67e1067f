package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ayusman/mingshan/internal/app"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// ControlSource is what the control socket reads from and writes to.
type ControlSource interface {
	Snapshot() app.Snapshot
	RenderFPS() int
	SetGestureEnabled(enabled bool) error
}

// controlMessage is sent by clients to switch gesture control.
type controlMessage struct {
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
}

// ControlHandler pushes every rendered Snapshot to WebSocket clients and
// accepts gesture toggles from them.
type ControlHandler struct {
	source  ControlSource
	log     zerolog.Logger
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
}

// NewControlHandler creates a new ControlHandler over the given source.
func NewControlHandler(source ControlSource, log zerolog.Logger) *ControlHandler {
	return &ControlHandler{
		source:  source,
		log:     log,
		clients: make(map[*websocket.Conn]bool),
	}
}

// Clients returns the number of connected clients.
func (h *ControlHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *ControlHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	done := make(chan struct{})
	go h.read(conn, done)
	h.push(conn, done)
}

// read handles client messages one at a time until the connection closes.
func (h *ControlHandler) read(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg controlMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "gesture" {
			h.log.Debug().Bytes("msg", data).Msg("ignoring control message")
			continue
		}
		// Toggles apply in arrival order. Enabling blocks until the camera
		// is up; the push loop keeps running meanwhile.
		if err := h.source.SetGestureEnabled(msg.Enabled); err != nil {
			h.log.Warn().Err(err).Bool("enabled", msg.Enabled).Msg("gesture toggle")
		}
	}
}

// push sends each new snapshot at the render rate. Frames rendered between
// two ticks are dropped; only the latest matters.
func (h *ControlHandler) push(conn *websocket.Conn, done chan struct{}) {
	fps := h.source.RenderFPS()
	if fps <= 0 {
		fps = app.DefaultRenderFPS
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	var last uint64
	sent := false
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		snap := h.source.Snapshot()
		if sent && snap.Frame == last {
			continue
		}
		last, sent = snap.Frame, true

		conn.SetWriteDeadline(time.Now().Add(time.Second))
		if err := conn.WriteJSON(snap); err != nil {
			h.log.Debug().Err(err).Msg("control client gone")
			return
		}
	}
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"askai/internal/logging"
	"askai/internal/session"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// WebSocketHub fans session events out to connected clients
type WebSocketHub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mu         sync.RWMutex
	writeWait  time.Duration
	logger     *logging.Logger
}

// NewWebSocketHub creates a hub
func NewWebSocketHub(logger *logging.Logger) *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		writeWait:  writeWait,
		logger:     logger,
	}
}

// Run starts the hub's event loop and closes every client when ctx ends
func (h *WebSocketHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.send(message)
		}
	}
}

// send writes message to every client. Only Run mutates the client set, so
// the writes happen on a snapshot without holding mu; a stalled client then
// cannot block Clients.
func (h *WebSocketHub) send(message []byte) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	var failed []*websocket.Conn
	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(h.writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.WithContext("error", err.Error()).Debug("dropping websocket client")
			conn.Close()
			failed = append(failed, conn)
		}
	}
	if len(failed) == 0 {
		return
	}
	h.mu.Lock()
	for _, conn := range failed {
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *WebSocketHub) add(conn *websocket.Conn) {
	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
	}
}

func (h *WebSocketHub) remove(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Clients returns the number of connected clients
func (h *WebSocketHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues a session event for every client. It never blocks: when
// the queue is full the event is dropped. It is a session.Observer.
func (h *WebSocketHub) Publish(ev session.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.WithContext("error", err.Error()).Warn("failed to encode event")
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.WithContext("event_type", string(ev.Type)).Warn("event queue full, dropping event")
	}
}

// handleWebSocket upgrades HTTP to WebSocket
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// Token auth already happened; the UI may be served from elsewhere
			return true
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithContext("error", err.Error()).Debug("websocket upgrade failed")
		return
	}

	s.wsHub.add(conn)

	// Read loop only detects the close
	go func() {
		defer s.wsHub.remove(conn)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

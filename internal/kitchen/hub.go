package kitchen

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 5 * time.Second

// BoardMessage is pushed to every board on connect and after each change.
type BoardMessage struct {
	Type string `json:"type"`
	// Alert asks the board to play the new order cue.
	Alert bool `json:"alert"`
	Board
}

func NewBoardMessage(b Board, alert bool) BoardMessage {
	return BoardMessage{Type: "board", Alert: alert, Board: b}
}

// Hub fans board updates out to connected kitchen screens.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan BoardMessage
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mu         sync.Mutex
	upgrader   websocket.Upgrader
	snapshot   func(ctx context.Context) (Board, error)
	logger     *zap.Logger
}

// NewHub builds a hub. snapshot supplies the board sent to a screen when it
// connects. An empty allowOrigins or "*" accepts any origin.
func NewHub(snapshot func(ctx context.Context) (Board, error), allowOrigins []string, logger *zap.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan BoardMessage),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		snapshot:   snapshot,
		logger:     logger,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowOrigins) == 0 || slices.Contains(allowOrigins, "*") {
				return true
			}
			return slices.Contains(allowOrigins, origin)
		},
	}
	return h
}

// Run serves register, unregister and broadcast until ctx ends, then closes
// every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				_ = conn.Close()
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(msg); err != nil {
					h.logger.Warn("ws write", zap.Error(err))
					_ = conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()

		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.clients {
				_ = conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Broadcast queues msg for every connected screen.
func (h *Hub) Broadcast(ctx context.Context, msg BoardMessage) error {
	select {
	case h.broadcast <- msg:
		return nil
	case <-h.done:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clients reports the number of connected screens.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP registers the screen before reading its first board, so any
// change committed after the snapshot still reaches it as a broadcast.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade", zap.Error(err))
		return
	}

	select {
	case h.register <- conn:
	case <-h.done:
		_ = conn.Close()
		return
	}

	if err := h.sendSnapshot(r.Context(), conn); err != nil {
		h.logger.Error("initial board", zap.Error(err))
		h.drop(conn)
		return
	}
	go h.listen(conn)
}

// sendSnapshot writes the current board under the hub lock so it never
// interleaves with a broadcast write on the same connection.
func (h *Hub) sendSnapshot(ctx context.Context, conn *websocket.Conn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	board, err := h.snapshot(ctx)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(NewBoardMessage(board, false))
}

func (h *Hub) drop(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
		_ = conn.Close()
	}
}

// listen drains client frames so close and ping are processed. Screens
// never send commands over the socket.
func (h *Hub) listen(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.drop(conn)
}

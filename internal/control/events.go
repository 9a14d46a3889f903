package control

import (
	"log"
	"net/http"
	"sync"
	"time"

	"webpanel/internal/screen"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// clientBuffer is the per-client event queue depth; a client whose queue
// fills is dropped rather than allowed to stall the publisher.
const clientBuffer = 32

// writeTimeout bounds a single websocket write.
const writeTimeout = 5 * time.Second

type client struct {
	conn *websocket.Conn
	send chan screen.Event
}

// Hub fans screen events out to connected websocket clients. It implements
// screen.EventSink; Publish never blocks. Each client has a buffered send
// queue drained by its own write pump, and a client that stops reading is
// dropped once its queue fills.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// Publish queues one event for every connected client. A client whose queue
// is full is disconnected instead of delaying the caller.
func (h *Hub) Publish(ev screen.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			h.dropLocked(c)
		}
	}
}

// ServeWS upgrades the request and streams events until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("failed to upgrade event connection: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan screen.Event, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)

	// Drain reads so close frames are processed; clients don't send data.
	go func() {
		defer h.drop(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// ClientCount returns the number of connected event listeners.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// writePump drains one client's queue onto its connection. It owns the
// connection's write side and closes the connection when the queue ends.
func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for ev := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(ev); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

// dropLocked requires h.mu. Closing the queue ends the client's write pump,
// which closes the connection.
func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

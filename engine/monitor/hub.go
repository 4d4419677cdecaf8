package monitor

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 5 * time.Second
	clientSendSize = 8
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Status pushes carry no secrets and the viewer UI may be served from a
	// different origin than the monitor port.
	CheckOrigin: func(*http.Request) bool { return true },
}

// hub fans status payloads out to every connected websocket client. Slow
// clients are dropped rather than allowed to stall the broadcast.
type hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}

	quitChannel chan struct{}
	closeOnce   sync.Once
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newHub() *hub {
	return &hub{
		clients:     make(map[*client]struct{}),
		quitChannel: make(chan struct{}),
	}
}

// serveWS upgrades the request and registers the connection for broadcasts.
func (h *hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("monitor: websocket upgrade failed: %v", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, clientSendSize),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

// broadcast queues the payload on every client, dropping clients whose send
// buffer is full.
func (h *hub) broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *hub) close() {
	h.closeOnce.Do(func() {
		close(h.quitChannel)
	})
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *hub) writePump(c *client) {
	defer c.conn.Close()
	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.remove(c)
				return
			}
		case <-h.quitChannel:
			_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		}
	}
}

// readPump drains inbound frames so ping/pong and close handshakes work;
// client messages are otherwise ignored.
func (h *hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/meshwatch/meshwatch/internal/api"
	"github.com/meshwatch/meshwatch/pkg/types"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Allow all origins; apply CORS at the reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients for every published snapshot.
type Message struct {
	Event string               `json:"event"`
	Data  api.SnapshotResponse `json:"data"`
}

// View is implemented by *poll.View.
type View interface {
	Activate(ctx context.Context)
	Deactivate()
	Latest() (types.Snapshot, bool)
	Subscribe(fn func(types.Snapshot)) (unsubscribe func())
}

// Hub manages WebSocket client connections and pushes every snapshot the
// view publishes to all of them. Connected clients keep the view active:
// the first one activates it and the last one to leave deactivates it,
// unless the hub was created with alwaysActive.
type Hub struct {
	view         View
	alwaysActive bool
	unsubscribe  func()

	// lifeMu serialises view activation against viewer changes.
	lifeMu  sync.Mutex
	viewers int
	ctx     context.Context

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// client represents one connected WebSocket client.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates a Hub and subscribes it to the snapshots published by view.
func New(view View, alwaysActive bool) *Hub {
	h := &Hub{
		view:         view,
		alwaysActive: alwaysActive,
		ctx:          context.Background(),
		clients:      make(map[*client]struct{}),
	}
	h.unsubscribe = view.Subscribe(h.broadcast)
	return h
}

// Run binds view activation to ctx. With alwaysActive it keeps the view
// active for its whole lifetime. Run blocks until ctx is cancelled, then
// unsubscribes from the view and closes all active connections.
func (h *Hub) Run(ctx context.Context) {
	defer h.unsubscribe()

	h.lifeMu.Lock()
	h.ctx = ctx
	if h.alwaysActive {
		h.view.Activate(ctx)
	}
	h.lifeMu.Unlock()

	<-ctx.Done()

	h.lifeMu.Lock()
	h.view.Deactivate()
	h.lifeMu.Unlock()
	h.closeAll()
}

// ServeHTTP upgrades the HTTP connection to WebSocket and serves the client.
// It sends the latest snapshot immediately on connect, then every snapshot
// published afterwards. Blocks until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}
	// Queue the latest snapshot while c.send is still private to this
	// goroutine; once registered, closeAll may close it.
	if snap, ok := h.view.Latest(); ok {
		if data, err := buildMessage(snap); err == nil {
			c.send <- data
		}
	}
	h.register(c)
	defer h.unregister(c)

	h.acquire()
	defer h.release()

	go c.writePump()
	c.readPump() // blocks until connection closes
}

// Count returns the number of currently connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// --- internal ---------------------------------------------------------------

// acquire records a new viewer and activates the view for the first one.
func (h *Hub) acquire() {
	h.lifeMu.Lock()
	defer h.lifeMu.Unlock()
	h.viewers++
	if h.viewers == 1 && !h.alwaysActive {
		slog.Info("ws: first viewer connected, activating view")
		h.view.Activate(h.ctx)
	}
}

// release drops a viewer and deactivates the view when none are left.
func (h *Hub) release() {
	h.lifeMu.Lock()
	defer h.lifeMu.Unlock()
	h.viewers--
	if h.viewers == 0 && !h.alwaysActive {
		slog.Info("ws: last viewer left, deactivating view")
		h.view.Deactivate()
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// broadcast runs inside the view's publish path and never blocks: a client
// whose buffer is full is disconnected.
func (h *Hub) broadcast(snap types.Snapshot) {
	data, err := buildMessage(snap)
	if err != nil {
		slog.Warn("ws: encode snapshot", "err", err)
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		slog.Warn("ws: dropping slow client", "remote", c.conn.RemoteAddr().String())
		h.unregister(c)
	}
}

func buildMessage(snap types.Snapshot) ([]byte, error) {
	return json.Marshal(Message{
		Event: "snapshot",
		Data:  api.BuildSnapshot(snap),
	})
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// writePump drains the client's send channel and forwards messages to the
// WebSocket connection. It also sends periodic ping frames. Runs in its own
// goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if !ok {
				// Channel was closed (hub is shutting down or client removed).
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames from the connection to process control messages (pong,
// close) and detect disconnects. Blocks until the connection closes.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

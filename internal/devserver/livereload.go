package devserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"c3addon-builder/internal/logging"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// Event is what live-reload clients receive after every build.
type Event struct {
	Type     string   `json:"type"`
	Build    string   `json:"build,omitempty"`
	Addon    string   `json:"addon,omitempty"`
	Version  string   `json:"version,omitempty"`
	Records  int      `json:"records,omitempty"`
	Skipped  bool     `json:"skipped,omitempty"`
	Changed  []string `json:"changed,omitempty"`
	Message  string   `json:"message,omitempty"`
	Duration string   `json:"duration,omitempty"`
}

// Hub fans build events out to every connected websocket client.
type Hub struct {
	log *zap.Logger

	mu      sync.Mutex
	clients map[chan Event]struct{}
	last    *Event

	done      chan struct{}
	closeOnce sync.Once
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{log: logging.OrNop(log), clients: make(map[chan Event]struct{}), done: make(chan struct{})}
}

// Close disconnects every client. Hijacked connections outlive
// http.Server.Shutdown, so the server calls this when it stops.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Broadcast sends ev to every client. Slow clients drop events rather than
// block the build loop.
func (h *Hub) Broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = &ev
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) subscribe() chan Event {
	ch := make(chan Event, 8)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	if h.last != nil {
		ch <- *h.last
	}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan Event) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

// ServeHTTP upgrades the request and streams events until the client leaves
// or the hub is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events := h.subscribe()
	defer h.unsubscribe(events)

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	// The reader only drains control frames and notices disconnects.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-h.done:
			h.closeConn(conn)
			<-gone
			return
		case <-gone:
			return
		case ev := <-events:
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				h.log.Debug("livereload write", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) closeConn(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = conn.Close()
}

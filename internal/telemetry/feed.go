package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/danmuck/geordon/internal/logging"
)

const (
	feedClientBuffer = 64
	feedWriteTimeout = 5 * time.Second
)

// Feed broadcasts events as JSON text frames to connected renderers. A
// renderer that falls behind is disconnected.
type Feed struct {
	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[*feedClient]struct{}
	closed   bool
}

type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

func NewFeed() *Feed {
	return &Feed{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*feedClient]struct{}),
	}
}

func (f *Feed) Name() string { return "feed" }

func (f *Feed) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

func (f *Feed) Deliver(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		select {
		case c.send <- data:
		default:
			logging.Warnf("telemetry feed: dropping slow renderer %s", c.conn.RemoteAddr())
			f.removeLocked(c)
		}
	}
	return nil
}

// ServeHTTP upgrades one renderer connection and holds it until the peer
// goes away. Inbound frames are read and discarded.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warnf("telemetry feed: upgrade failed: %v", err)
		return
	}
	c := &feedClient{conn: conn, send: make(chan []byte, feedClientBuffer)}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		_ = conn.Close()
		return
	}
	f.clients[c] = struct{}{}
	f.mu.Unlock()
	logging.Debugf("telemetry feed: renderer connected %s", conn.RemoteAddr())

	go c.writeLoop()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	f.remove(c)
	logging.Debugf("telemetry feed: renderer disconnected %s", conn.RemoteAddr())
}

func (f *Feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for c := range f.clients {
		f.removeLocked(c)
	}
	return nil
}

func (f *Feed) remove(c *feedClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(c)
}

// removeLocked closes c.send exactly once; the writer then closes the socket.
func (f *Feed) removeLocked(c *feedClient) {
	if _, ok := f.clients[c]; !ok {
		return
	}
	delete(f.clients, c)
	close(c.send)
}

func (c *feedClient) writeLoop() {
	defer c.conn.Close()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

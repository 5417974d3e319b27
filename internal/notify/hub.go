package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"bundlewatch/internal/logging"
)

// Event types sent to websocket subscribers.
const (
	EventPromptOpened = "prompt.opened"
	EventPromptClosed = "prompt.closed"
)

const (
	clientBuffer = 16
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
	pongDeadline = 60 * time.Second
)

// Event is the JSON frame sent to subscribers.
type Event struct {
	Type   string      `json:"type"`
	Update *Update     `json:"update,omitempty"`
	Reason CloseReason `json:"reason,omitempty"`
	At     time.Time   `json:"at"`
}

// Hub broadcasts prompt events to websocket subscribers. Subscribers that
// connect while a prompt is open receive it immediately.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger
	ping     time.Duration
	pongWait time.Duration

	mu      sync.Mutex
	clients map[*websocket.Conn]*clientWriter
	current *Update
	closed  bool
}

// NewHub returns an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:   logging.NewComponentLogger(logger, "events"),
		ping:     pingInterval,
		pongWait: pongDeadline,
		clients:  make(map[*websocket.Conn]*clientWriter),
	}
}

// WithKeepalive overrides how often subscribers are pinged and how long the
// hub waits for a pong before dropping them.
func (h *Hub) WithKeepalive(ping, pongWait time.Duration) *Hub {
	if ping > 0 {
		h.ping = ping
	}
	if pongWait > 0 {
		h.pongWait = pongWait
	}
	return h
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Show(_ context.Context, update Update) (Prompt, error) {
	u := update
	h.mu.Lock()
	h.current = &u
	h.mu.Unlock()
	h.broadcast(Event{Type: EventPromptOpened, Update: &u, At: time.Now().UTC()})
	return &hubPrompt{hub: h, id: update.ID}, nil
}

type hubPrompt struct {
	hub *Hub
	id  string
}

func (p *hubPrompt) Close(_ context.Context, reason CloseReason) error {
	h := p.hub
	h.mu.Lock()
	var closed *Update
	if h.current != nil && h.current.ID == p.id {
		closed = h.current
		h.current = nil
	}
	h.mu.Unlock()
	if closed == nil {
		return nil
	}
	h.broadcast(Event{Type: EventPromptClosed, Update: closed, Reason: reason, At: time.Now().UTC()})
	return nil
}

// ServeHTTP upgrades the request and streams events until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}

	cw := newClientWriter(conn, h.ping)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		cw.stop()
		return
	}
	h.clients[conn] = cw
	current := h.current
	h.mu.Unlock()
	h.logger.Debug("subscriber connected", logging.String("remote_addr", r.RemoteAddr))

	if current != nil {
		if data, err := json.Marshal(Event{Type: EventPromptOpened, Update: current, At: time.Now().UTC()}); err == nil {
			cw.send(data)
		}
	}

	// Subscribers never send anything meaningful; reading detects disconnects
	// and lets pongs push the deadline out.
	_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(conn)
}

// Shutdown disconnects every subscriber.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*websocket.Conn]*clientWriter)
	h.mu.Unlock()
	for _, cw := range clients {
		cw.stop()
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	cw, ok := h.clients[conn]
	delete(h.clients, conn)
	h.mu.Unlock()
	if ok {
		cw.stop()
	}
}

func (h *Hub) broadcast(evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Warn("encode event failed", logging.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, cw := range h.clients {
		cw.send(data)
	}
}

type clientWriter struct {
	conn   *websocket.Conn
	ping   time.Duration
	sendCh chan []byte
	done   chan struct{}
	once   sync.Once
}

func newClientWriter(conn *websocket.Conn, ping time.Duration) *clientWriter {
	cw := &clientWriter{
		conn:   conn,
		ping:   ping,
		sendCh: make(chan []byte, clientBuffer),
		done:   make(chan struct{}),
	}
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	ticker := time.NewTicker(cw.ping)
	defer ticker.Stop()
	for {
		select {
		case msg := <-cw.sendCh:
			_ = cw.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cw.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				_ = cw.conn.Close()
				return
			}
		case <-ticker.C:
			_ = cw.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cw.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = cw.conn.Close()
				return
			}
		case <-cw.done:
			return
		}
	}
}

// send drops the frame when the client is not keeping up.
func (cw *clientWriter) send(data []byte) {
	select {
	case cw.sendCh <- data:
	case <-cw.done:
	default:
	}
}

func (cw *clientWriter) stop() {
	cw.once.Do(func() {
		close(cw.done)
		_ = cw.conn.Close()
	})
}

package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/Jeofrey10/bus-backend/internal/metrics"
	"github.com/Jeofrey10/bus-backend/internal/registry"
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

	// DefaultSendBuffer is the per-subscriber outgoing frame buffer depth.
	DefaultSendBuffer = 16

	// DefaultReadLimit is the largest inbound frame accepted from a subscriber.
	DefaultReadLimit = 4096
)

// Options configures a Hub. Zero values select the defaults.
type Options struct {
	SendBuffer int
	ReadLimit  int64
	Metrics    *metrics.Relay
	Clock      clockwork.Clock
}

// Hub accepts subscriber connections and keeps the registry in sync with them.
type Hub struct {
	registry   *registry.Registry
	metrics    *metrics.Relay
	clock      clockwork.Clock
	sendBuffer int
	readLimit  int64
	upgrader   websocket.Upgrader
}

// New creates a Hub that registers subscribers in reg.
func New(reg *registry.Registry, opts Options) *Hub {
	h := &Hub{
		registry:   reg,
		metrics:    opts.Metrics,
		clock:      opts.Clock,
		sendBuffer: opts.SendBuffer,
		readLimit:  opts.ReadLimit,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	if h.clock == nil {
		h.clock = clockwork.NewRealClock()
	}
	if h.sendBuffer <= 0 {
		h.sendBuffer = DefaultSendBuffer
	}
	if h.readLimit <= 0 {
		h.readLimit = DefaultReadLimit
	}
	return h
}

// Run blocks until ctx is cancelled, then closes every registered subscriber.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// ServeHTTP upgrades the request to a WebSocket and serves the subscriber
// until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		slog.Debug("ws: upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	s := newSubscriber(conn, h.sendBuffer, h.clock.Now())
	h.register(s)
	defer h.unregister(s)

	slog.Info("ws: subscriber connected", "subscriber", s.id, "remote", r.RemoteAddr)

	go h.writePump(s)
	h.readPump(s) // blocks until connection closes
}

// Count returns the number of currently registered subscribers.
func (h *Hub) Count() int {
	return h.registry.Len()
}

// --- internal ---------------------------------------------------------------

func (h *Hub) register(s *subscriber) {
	h.registry.Add(s)
	if h.metrics != nil {
		h.metrics.Connections.Inc()
	}
	h.updateGauge()
}

func (h *Hub) unregister(s *subscriber) {
	s.close()
	if h.registry.Remove(s) {
		h.updateGauge()
	}
	slog.Info("ws: subscriber disconnected",
		"subscriber", s.id,
		"connected_for", h.clock.Since(s.connectedAt).Round(time.Millisecond),
	)
}

func (h *Hub) closeAll() {
	for _, c := range h.registry.Drain() {
		if s, ok := c.(*subscriber); ok {
			s.close()
		}
	}
	h.updateGauge()
}

func (h *Hub) updateGauge() {
	if h.metrics != nil {
		h.metrics.Subscribers.Set(float64(h.registry.Len()))
	}
}

// writePump drains the subscriber's send buffer onto the connection and sends
// periodic pings. It is the only goroutine that writes to s.conn.
func (h *Hub) writePump(s *subscriber) {
	ticker := h.clock.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg := <-s.send:
			s.conn.SetWriteDeadline(h.clock.Now().Add(writeTimeout)) //nolint:errcheck
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				slog.Debug("ws: write failed", "subscriber", s.id, "err", err)
				s.close()
				return
			}

		case <-s.done:
			s.conn.SetWriteDeadline(h.clock.Now().Add(writeTimeout)) //nolint:errcheck
			s.conn.WriteMessage(websocket.CloseMessage, //nolint:errcheck
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return

		case <-ticker.Chan():
			s.conn.SetWriteDeadline(h.clock.Now().Add(writeTimeout)) //nolint:errcheck
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}
		}
	}
}

// readPump reads frames until the connection closes. Subscriber frames carry
// no meaning for the relay and are discarded.
func (h *Hub) readPump(s *subscriber) {
	defer s.conn.Close()
	s.conn.SetReadLimit(h.readLimit)
	s.conn.SetReadDeadline(h.clock.Now().Add(pongWait)) //nolint:errcheck
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(h.clock.Now().Add(pongWait))
	})
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("ws: read failed", "subscriber", s.id, "err", err)
			}
			return
		}
		if h.metrics != nil {
			h.metrics.InboundMessages.Inc()
		}
		slog.Debug("ws: ignoring subscriber message", "subscriber", s.id, "bytes", len(msg))
	}
}

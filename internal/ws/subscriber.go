package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Jeofrey10/bus-backend/internal/registry"
)

// subscriber is one connected WebSocket client. It implements registry.Conn.
type subscriber struct {
	id          string
	conn        *websocket.Conn
	connectedAt time.Time

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSubscriber(conn *websocket.Conn, buffer int, now time.Time) *subscriber {
	return &subscriber{
		id:          uuid.NewString(),
		conn:        conn,
		connectedAt: now,
		send:        make(chan []byte, buffer),
		done:        make(chan struct{}),
	}
}

func (s *subscriber) ID() string { return s.id }

func (s *subscriber) Open() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Send queues payload without blocking. The slice must not be modified
// afterwards; the same slice is shared between subscribers.
func (s *subscriber) Send(payload []byte) error {
	if !s.Open() {
		return registry.ErrClosed
	}
	select {
	case s.send <- payload:
		return nil
	default:
		return registry.ErrSendBufferFull
	}
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

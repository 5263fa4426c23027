package registry

import (
	"errors"
	"sync"
)

var (
	// ErrClosed is returned by Conn.Send after the connection has closed.
	ErrClosed = errors.New("connection closed")

	// ErrSendBufferFull is returned by Conn.Send when the connection cannot
	// accept another frame without blocking the caller.
	ErrSendBufferFull = errors.New("send buffer full")
)

// Conn is one subscriber connection as seen by the registry.
type Conn interface {
	// ID returns a stable identifier used in logs.
	ID() string

	// Open reports whether the underlying transport is still usable.
	Open() bool

	// Send queues payload for delivery. It must not block.
	Send(payload []byte) error
}

// Registry is a thread-safe set of subscriber connections.
type Registry struct {
	mu    sync.RWMutex
	conns map[Conn]struct{}
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{conns: make(map[Conn]struct{})}
}

// Add inserts c. Adding a Conn that is already present has no effect.
func (r *Registry) Add(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c] = struct{}{}
}

// Remove deletes c and reports whether it was present.
func (r *Registry) Remove(c Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[c]; !ok {
		return false
	}
	delete(r.conns, c)
	return true
}

// Len returns the number of registered connections, open or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// ForEachOpen calls fn for every registered Conn that reports Open.
// fn runs without the registry lock held and may call Add or Remove.
func (r *Registry) ForEachOpen(fn func(Conn)) {
	for _, c := range r.snapshot() {
		if !c.Open() {
			continue
		}
		fn(c)
	}
}

// Drain removes every connection and returns them.
func (r *Registry) Drain() []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Conn, 0, len(r.conns))
	for c := range r.conns {
		out = append(out, c)
		delete(r.conns, c)
	}
	return out
}

func (r *Registry) snapshot() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Conn, 0, len(r.conns))
	for c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Package registrytest provides an in-memory registry.Conn for tests.
package registrytest

import (
	"sync"

	"github.com/Jeofrey10/bus-backend/internal/registry"
)

// Conn records every payload sent to it. Closing it makes Open report false
// and Send return registry.ErrClosed. Setting Err makes every Send fail with
// that error while the Conn still reports open.
type Conn struct {
	id string

	mu       sync.Mutex
	closed   bool
	err      error
	received [][]byte
}

// NewConn returns an open Conn with the given id.
func NewConn(id string) *Conn {
	return &Conn{id: id}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *Conn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return registry.ErrClosed
	}
	if c.err != nil {
		return c.err
	}
	c.received = append(c.received, append([]byte(nil), payload...))
	return nil
}

// Close marks the Conn closed.
func (c *Conn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// FailWith makes subsequent sends return err. A nil err restores delivery.
func (c *Conn) FailWith(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

// Received returns the payloads delivered so far, as strings.
func (c *Conn) Received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.received))
	for i, p := range c.received {
		out[i] = string(p)
	}
	return out
}

// Package ws implements the subscriber-facing WebSocket endpoint of the relay.
//
// Hub.ServeHTTP upgrades an HTTP connection, registers the resulting
// subscriber with the connection registry, and unregisters it once the read
// side observes the connection closing. Each subscriber owns a bounded send
// buffer drained by its own write goroutine, so a push from the broadcast path
// never blocks on a slow client: when the buffer is full the push fails with
// registry.ErrSendBufferFull and the frame is dropped for that subscriber.
//
// The protocol is receive-only. Frames sent by subscribers are read, counted
// and discarded. The write goroutine sends a ping every pingPeriod; a
// subscriber that stops answering pongs within pongWait is disconnected.
//
// Hub.Run(ctx) blocks until ctx is cancelled, then sends a close frame to every
// registered subscriber.
//
// The upgrader accepts all origins.
package ws

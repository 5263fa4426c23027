// Package registry tracks the set of currently open subscriber connections.
//
// The Registry is the single source of truth for broadcast targets. Conns are
// keyed by identity; Add of an already-present Conn is a no-op and Remove of
// an absent Conn does nothing. ForEachOpen iterates over a snapshot taken at
// call time and skips any Conn whose Open method reports false, so a close
// that lands between the snapshot and the push is tolerated.
package registry

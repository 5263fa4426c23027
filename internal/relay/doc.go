// Package relay pushes producer updates to every open subscriber connection.
//
// Service.Broadcast compacts the payload once and hands the identical bytes to
// each Conn reported open by the registry. Delivery is fire-and-forget: a
// failed push is logged and counted, never retried, and never stops the loop.
// The subscriber stays registered and receives the next broadcast.
package relay

// Package api implements the producer-facing HTTP API of the relay.
//
// New(relay, opts) returns a Server (an http.Handler) that serves:
//
//	GET  /           liveness: {"status":"realtime server ok"}
//	POST /broadcast  push the JSON body to every subscriber, then reply
//	                 {"status":"broadcasted","received":<body>}
//	POST /echo       reply {"echo":<body>} without touching subscribers
//	GET  /stats      {"subscribers":<n>}
//	GET  /metrics    Prometheus exposition, when a metrics handler is given
//
// Bodies are parsed the way a JSON body parser would: an empty body or a
// request without a JSON content type reads as {}; anything that is not a JSON
// object or array is rejected with 400. Bodies over the configured limit are
// rejected with 413 before any handler runs. CORS allows every origin.
//
// The broadcast reply does not depend on how many subscribers received the
// payload. Per-subscriber push failures are logged by package relay and never
// reach the producer.
package api

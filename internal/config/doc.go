// Package config loads the relay configuration.
//
// Config fields:
//   - HTTPPort       : producer-facing HTTP API port (PORT, default 4000)
//   - WSPort         : subscriber WebSocket port (WS_PORT, default 8080)
//   - WSPath         : WebSocket mount path (WS_PATH, default "/")
//   - MaxBodySize    : POST body limit (MAX_BODY_SIZE, default "1M")
//   - SendBuffer     : per-subscriber frame buffer (WS_SEND_BUFFER, default 16)
//   - ReadLimit      : largest inbound subscriber frame (WS_READ_LIMIT, default 4096)
//   - LogLevel       : debug|info|warn|error (LOG_LEVEL, default info)
//   - LogFormat      : json|text (LOG_FORMAT, default json)
//   - ShutdownTimeout: graceful shutdown bound (SHUTDOWN_TIMEOUT, default 10s)
//
// Load(path) applies defaults, then the optional YAML file, then environment
// variables, then validates. Watch(ctx, path, fn) reloads the file on change.
package config

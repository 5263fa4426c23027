package api

import "encoding/json"

// healthResponse is the payload for GET /.
type healthResponse struct {
	Status string `json:"status"`
}

// broadcastResponse is the payload for POST /broadcast.
type broadcastResponse struct {
	Status   string          `json:"status"`
	Received json.RawMessage `json:"received"`
}

// echoResponse is the payload for POST /echo.
type echoResponse struct {
	Echo json.RawMessage `json:"echo"`
}

// statsResponse is the payload for GET /stats.
type statsResponse struct {
	Subscribers int `json:"subscribers"`
}

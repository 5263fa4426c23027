package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/Jeofrey10/bus-backend/internal/metrics"
	"github.com/Jeofrey10/bus-backend/internal/registry"
)

// ErrInvalidPayload is returned by Broadcast when the payload is not valid
// UTF-8 encoded JSON.
var ErrInvalidPayload = errors.New("payload is not valid JSON")

// Result summarizes one broadcast.
type Result struct {
	Delivered int
	Failed    int
}

// Service fans broadcast payloads out to the registry.
type Service struct {
	registry *registry.Registry
	metrics  *metrics.Relay
}

// New creates a Service over reg. m may be nil.
func New(reg *registry.Registry, m *metrics.Relay) *Service {
	return &Service{registry: reg, metrics: m}
}

// Broadcast sends payload to every open subscriber. The payload is forwarded
// as-is apart from insignificant whitespace, so key order and number
// formatting are preserved.
func (s *Service) Broadcast(ctx context.Context, payload json.RawMessage) (Result, error) {
	if !utf8.Valid(payload) {
		return Result{}, fmt.Errorf("%w: invalid UTF-8", ErrInvalidPayload)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	data := buf.Bytes()

	var res Result
	s.registry.ForEachOpen(func(c registry.Conn) {
		if err := c.Send(data); err != nil {
			res.Failed++
			slog.WarnContext(ctx, "relay: push failed", "subscriber", c.ID(), "err", err)
			return
		}
		res.Delivered++
	})

	if s.metrics != nil {
		s.metrics.Broadcasts.Inc()
		s.metrics.Deliveries.WithLabelValues(metrics.ResultDelivered).Add(float64(res.Delivered))
		s.metrics.Deliveries.WithLabelValues(metrics.ResultFailed).Add(float64(res.Failed))
	}

	slog.DebugContext(ctx, "relay: broadcast",
		"bytes", len(data),
		"delivered", res.Delivered,
		"failed", res.Failed,
	)
	return res, nil
}

// Subscribers returns the number of registered subscriber connections.
func (s *Service) Subscribers() int {
	return s.registry.Len()
}

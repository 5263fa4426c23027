package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Jeofrey10/bus-backend/internal/relay"
)

// DefaultBodyLimit matches the relay's default maximum POST body size.
const DefaultBodyLimit = "1M"

// Broadcaster is the relay operation the API exposes.
type Broadcaster interface {
	Broadcast(ctx context.Context, payload json.RawMessage) (relay.Result, error)
	Subscribers() int
}

// Options configures a Server. Zero values select the defaults.
type Options struct {
	// BodyLimit caps request bodies, e.g. "1M".
	BodyLimit string

	// Metrics, when set, is mounted at GET /metrics.
	Metrics http.Handler
}

// Server is the HTTP handler for the producer-facing API.
type Server struct {
	echo  *echo.Echo
	relay Broadcaster
}

// New creates a Server that hands broadcast bodies to b.
func New(b Broadcaster, opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, relay: b}

	limit := opts.BodyLimit
	if limit == "" {
		limit = DefaultBodyLimit
	}

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(requestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit(limit))

	e.GET("/", s.health)
	e.POST("/broadcast", s.broadcast)
	e.POST("/echo", s.echoBody)
	e.GET("/stats", s.stats)
	if opts.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(opts.Metrics))
	}

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				attrs = append(attrs, "err", v.Error)
			}
			slog.Debug("api: request", attrs...)
			return nil
		},
	})
}

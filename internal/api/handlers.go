package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/Jeofrey10/bus-backend/internal/relay"
)

var emptyObject = json.RawMessage(`{}`)

// health returns GET /.
func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "realtime server ok"})
}

// broadcast handles POST /broadcast. The body is relayed even when it lacks
// the fields subscribers usually expect.
func (s *Server) broadcast(c echo.Context) error {
	body, err := readJSONBody(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if !hasType(body) {
		slog.DebugContext(ctx, "api: broadcast payload has no type field, relaying anyway")
	}

	if _, err := s.relay.Broadcast(ctx, body); err != nil {
		if errors.Is(err, relay.ErrInvalidPayload) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
		}
		return err
	}

	return jsonResp(c, http.StatusOK, broadcastResponse{Status: "broadcasted", Received: body})
}

// echoBody handles POST /echo.
func (s *Server) echoBody(c echo.Context) error {
	body, err := readJSONBody(c)
	if err != nil {
		return err
	}
	return jsonResp(c, http.StatusOK, echoResponse{Echo: body})
}

// stats returns GET /stats.
func (s *Server) stats(c echo.Context) error {
	return c.JSON(http.StatusOK, statsResponse{Subscribers: s.relay.Subscribers()})
}

// --- helpers ----------------------------------------------------------------

// jsonResp writes v without HTML escaping, so a relayed body is echoed back
// with the same bytes subscribers receive.
func jsonResp(c echo.Context, code int, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return c.Blob(code, echo.MIMEApplicationJSONCharsetUTF8, buf.Bytes())
}

// readJSONBody returns the request body as compact JSON. Requests that carry no
// JSON read as {}. Bodies that are not valid UTF-8 are rejected: they would
// reach subscribers as invalid text frames.
func readJSONBody(c echo.Context) (json.RawMessage, error) {
	req := c.Request()
	if !isJSONContentType(req.Header.Get(echo.HeaderContentType)) {
		return emptyObject, nil
	}

	data, err := io.ReadAll(req.Body)
	if err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			// BodyLimit reports overflow through the reader.
			return nil, httpErr
		}
		return nil, echo.NewHTTPError(http.StatusBadRequest, "failed to read body").SetInternal(err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return emptyObject, nil
	}
	if !utf8.Valid(data) {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "body is not valid UTF-8")
	}
	if data[0] != '{' && data[0] != '[' {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "body must be a JSON object or array")
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body").SetInternal(err)
	}
	return buf.Bytes(), nil
}

// isJSONContentType reports whether ct names application/json or a +json type.
func isJSONContentType(ct string) bool {
	if ct == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mt == echo.MIMEApplicationJSON || strings.HasSuffix(mt, "+json")
}

// hasType reports whether body is an object with a "type" member.
func hasType(body json.RawMessage) bool {
	var fields struct {
		Type json.RawMessage `json:"type"`
	}
	if len(body) == 0 || body[0] != '{' {
		return false
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		return false
	}
	return fields.Type != nil
}

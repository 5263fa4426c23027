package api_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jeofrey10/bus-backend/internal/api"
	"github.com/Jeofrey10/bus-backend/internal/metrics"
	"github.com/Jeofrey10/bus-backend/internal/registry"
	"github.com/Jeofrey10/bus-backend/internal/registry/registrytest"
	"github.com/Jeofrey10/bus-backend/internal/relay"
)

const busUpdate = `{"type":"busUpdate","busId":"7","lat":1.0,"lng":2.0}`

// --- test helpers -----------------------------------------------------------

type fixture struct {
	server *api.Server
	reg    *registry.Registry
	subs   []*registrytest.Conn
}

func newFixture(t *testing.T, subscribers int, opts api.Options) *fixture {
	t.Helper()
	reg := registry.New()
	f := &fixture{reg: reg}
	for i := 0; i < subscribers; i++ {
		c := registrytest.NewConn("sub")
		reg.Add(c)
		f.subs = append(f.subs, c)
	}
	f.server = api.New(relay.New(reg, nil), opts)
	return f
}

func (f *fixture) do(t *testing.T, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	f.server.ServeHTTP(rr, req)
	return rr
}

func (f *fixture) postJSON(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return f.do(t, http.MethodPost, path, "application/json", body)
}

func body(rr *httptest.ResponseRecorder) string {
	return strings.TrimSpace(rr.Body.String())
}

// --- GET / ------------------------------------------------------------------

func TestHealth(t *testing.T) {
	f := newFixture(t, 0, api.Options{})
	rr := f.do(t, http.MethodGet, "/", "", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `{"status":"realtime server ok"}`, body(rr))
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
}

func TestHealth_SetsRequestID(t *testing.T) {
	f := newFixture(t, 0, api.Options{})
	rr := f.do(t, http.MethodGet, "/", "", "")
	assert.Len(t, rr.Header().Get("X-Request-Id"), 36)
}

// --- POST /broadcast --------------------------------------------------------

func TestBroadcast_BusUpdate(t *testing.T) {
	f := newFixture(t, 3, api.Options{})
	rr := f.postJSON(t, "/broadcast", busUpdate)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `{"status":"broadcasted","received":`+busUpdate+`}`, body(rr))
	for _, c := range f.subs {
		assert.Equal(t, []string{busUpdate}, c.Received())
	}
}

func TestBroadcast_EmptyObjectNotRejected(t *testing.T) {
	f := newFixture(t, 2, api.Options{})
	rr := f.postJSON(t, "/broadcast", `{}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `{"status":"broadcasted","received":{}}`, body(rr))
	for _, c := range f.subs {
		assert.Equal(t, []string{`{}`}, c.Received())
	}
}

func TestBroadcast_NoSubscribers(t *testing.T) {
	f := newFixture(t, 0, api.Options{})
	rr := f.postJSON(t, "/broadcast", busUpdate)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `{"status":"broadcasted","received":`+busUpdate+`}`, body(rr))
}

func TestBroadcast_ResponseIndependentOfDeliveryFailures(t *testing.T) {
	f := newFixture(t, 3, api.Options{})
	f.subs[0].Close()
	f.subs[1].FailWith(registry.ErrSendBufferFull)

	rr := f.postJSON(t, "/broadcast", busUpdate)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `{"status":"broadcasted","received":`+busUpdate+`}`, body(rr))
	assert.Empty(t, f.subs[0].Received())
	assert.Empty(t, f.subs[1].Received())
	assert.Equal(t, []string{busUpdate}, f.subs[2].Received())
}

func TestBroadcast_CompactsWhitespace(t *testing.T) {
	f := newFixture(t, 1, api.Options{})
	rr := f.postJSON(t, "/broadcast", "{ \"type\" : \"busUpdate\",\n \"lat\" : 1.0 }\n")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{`{"type":"busUpdate","lat":1.0}`}, f.subs[0].Received())
}

func TestBroadcast_ArrayBody(t *testing.T) {
	f := newFixture(t, 1, api.Options{})
	rr := f.postJSON(t, "/broadcast", `[{"busId":"1"},{"busId":"2"}]`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{`[{"busId":"1"},{"busId":"2"}]`}, f.subs[0].Received())
}

func TestBroadcast_EmptyBodyReadsAsEmptyObject(t *testing.T) {
	f := newFixture(t, 1, api.Options{})
	rr := f.postJSON(t, "/broadcast", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `{"status":"broadcasted","received":{}}`, body(rr))
	assert.Equal(t, []string{`{}`}, f.subs[0].Received())
}

func TestBroadcast_NonJSONContentTypeReadsAsEmptyObject(t *testing.T) {
	f := newFixture(t, 1, api.Options{})
	rr := f.do(t, http.MethodPost, "/broadcast", "text/plain", busUpdate)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `{"status":"broadcasted","received":{}}`, body(rr))
}

func TestBroadcast_JSONSuffixContentType(t *testing.T) {
	f := newFixture(t, 1, api.Options{})
	rr := f.do(t, http.MethodPost, "/broadcast", "application/vnd.bus+json; charset=utf-8", `{"a":1}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{`{"a":1}`}, f.subs[0].Received())
}

func TestBroadcast_MalformedJSON(t *testing.T) {
	f := newFixture(t, 1, api.Options{})
	rr := f.postJSON(t, "/broadcast", `{"type":`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, f.subs[0].Received())
}

func TestBroadcast_PrimitiveRejected(t *testing.T) {
	f := newFixture(t, 1, api.Options{})
	for _, b := range []string{`"hello"`, `42`, `true`, `null`} {
		rr := f.postJSON(t, "/broadcast", b)
		assert.Equal(t, http.StatusBadRequest, rr.Code, b)
	}
	assert.Empty(t, f.subs[0].Received())
}

func TestBroadcast_OversizedBody(t *testing.T) {
	f := newFixture(t, 1, api.Options{BodyLimit: "64B"})
	big := `{"pad":"` + strings.Repeat("x", 128) + `"}`

	rr := f.postJSON(t, "/broadcast", big)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Empty(t, f.subs[0].Received())
}

func TestBroadcast_OversizedBodyWithoutContentLength(t *testing.T) {
	f := newFixture(t, 1, api.Options{BodyLimit: "64B"})
	big := `{"pad":"` + strings.Repeat("x", 128) + `"}`

	req := httptest.NewRequest(http.MethodPost, "/broadcast", strings.NewReader(big))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = -1
	rr := httptest.NewRecorder()
	f.server.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Empty(t, f.subs[0].Received())
}

func TestBroadcast_InvalidUTF8Rejected(t *testing.T) {
	f := newFixture(t, 2, api.Options{})
	rr := f.postJSON(t, "/broadcast", "{\"name\":\"\xff\xfe\"}")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	for _, c := range f.subs {
		assert.Empty(t, c.Received())
	}
}

func TestBroadcast_ReceivedMatchesPushedBytes(t *testing.T) {
	f := newFixture(t, 1, api.Options{})
	payload := `{"note":"<b>&</b>"}`

	rr := f.postJSON(t, "/broadcast", payload)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `{"status":"broadcasted","received":`+payload+`}`, body(rr))
	assert.Equal(t, []string{payload}, f.subs[0].Received())
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
}

func TestBroadcast_WithinLimit(t *testing.T) {
	f := newFixture(t, 1, api.Options{BodyLimit: "64B"})
	rr := f.postJSON(t, "/broadcast", `{"small":true}`)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestBroadcast_MethodNotAllowed(t *testing.T) {
	f := newFixture(t, 1, api.Options{})
	rr := f.do(t, http.MethodGet, "/broadcast", "", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Empty(t, f.subs[0].Received())
}

// --- POST /echo -------------------------------------------------------------

func TestEcho(t *testing.T) {
	f := newFixture(t, 2, api.Options{})
	rr := f.postJSON(t, "/echo", `{"x":1}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `{"echo":{"x":1}}`, body(rr))
	for _, c := range f.subs {
		assert.Empty(t, c.Received(), "echo must not produce socket traffic")
	}
}

func TestEcho_NoHTMLEscaping(t *testing.T) {
	f := newFixture(t, 0, api.Options{})
	rr := f.postJSON(t, "/echo", `{"q":"a<b && c>d"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `{"echo":{"q":"a<b && c>d"}}`, body(rr))
}

func TestEcho_InvalidUTF8Rejected(t *testing.T) {
	f := newFixture(t, 0, api.Options{})
	rr := f.postJSON(t, "/echo", "{\"x\":\"\xc3\x28\"}")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEcho_EmptyBody(t *testing.T) {
	f := newFixture(t, 0, api.Options{})
	rr := f.postJSON(t, "/echo", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `{"echo":{}}`, body(rr))
}

// --- GET /stats, GET /metrics -----------------------------------------------

func TestStats(t *testing.T) {
	f := newFixture(t, 2, api.Options{})
	rr := f.do(t, http.MethodGet, "/stats", "", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"subscribers":2}`, rr.Body.String())

	f.reg.Remove(f.subs[0])
	rr = f.do(t, http.MethodGet, "/stats", "", "")
	assert.JSONEq(t, `{"subscribers":1}`, rr.Body.String())
}

func TestMetrics_MountedWhenProvided(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewRelay(reg)
	m.Broadcasts.Add(5)

	f := newFixture(t, 0, api.Options{Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})})
	rr := f.do(t, http.MethodGet, "/metrics", "", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "bus_relay_broadcasts_total 5")
}

func TestMetrics_AbsentByDefault(t *testing.T) {
	f := newFixture(t, 0, api.Options{})
	rr := f.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// --- CORS -------------------------------------------------------------------

func TestCORS_AnyOrigin(t *testing.T) {
	f := newFixture(t, 0, api.Options{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	rr := httptest.NewRecorder()
	f.server.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Preflight(t *testing.T) {
	f := newFixture(t, 0, api.Options{})
	req := httptest.NewRequest(http.MethodOptions, "/broadcast", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	f.server.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

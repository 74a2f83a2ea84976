package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yndnr/tallymesh/internal/core/actor"
	"github.com/yndnr/tallymesh/internal/core/domain"
	"github.com/yndnr/tallymesh/internal/core/service"
	"github.com/yndnr/tallymesh/internal/storage"
	"github.com/yndnr/tallymesh/internal/storage/memory"
	"github.com/yndnr/tallymesh/internal/transport"
)

type testEnv struct {
	srv      *httptest.Server
	registry *transport.Registry
}

func newTestEnv(t *testing.T, ready func(context.Context) error) *testEnv {
	t.Helper()

	reg := transport.NewRegistry()
	store := storage.NewCounterStore(memory.New())

	counters := actor.NewNamespace(actor.KindCounter, actor.NewCounterFactory(&actor.CounterEnv{
		Store:   store,
		Sockets: reg,
	}), actor.NamespaceOptions{})
	presence := actor.NewNamespace(actor.KindPresence, actor.NewPresenceFactory(&actor.PresenceEnv{
		Sockets: reg,
	}), actor.NamespaceOptions{})

	cfg := transport.DefaultConfig()
	cfg.MaxConnections = 4

	h := New(Deps{
		Counters:       service.NewCounterService(counters, time.Second, nil),
		Presence:       service.NewPresenceService(presence, time.Second),
		Acceptor:       transport.NewAcceptor(cfg, reg, nil),
		CounterEvents:  actor.NewDispatcher(counters, actor.DefaultSettleDelay, time.Second, nil),
		PresenceEvents: actor.NewDispatcher(presence, actor.DefaultSettleDelay, time.Second, nil),
		Ready:          ready,
	})

	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		reg.CloseAll(websocket.CloseGoingAway, "test done")
		srv.Close()
		counters.Close()
		presence.Close()
	})
	return &testEnv{srv: srv, registry: reg}
}

func (e *testEnv) do(t *testing.T, method, path, body string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return v
}

func (e *testEnv) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readFrame reads frames until one of type want arrives.
func readFrame(t *testing.T, conn *websocket.Conn, want domain.MessageType) domain.Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		f, err := domain.DecodeFrame(raw)
		if err != nil {
			continue
		}
		if f.Type == want {
			return f
		}
	}
}

func TestCounterRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{"/api/counter", "/api/counter/"} {
		resp := env.do(t, http.MethodGet, path, "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d", path, resp.StatusCode)
		}
		st := decode[domain.CounterState](t, resp)
		if st.Value != 0 || st.LastUpdater != nil {
			t.Errorf("GET %s = %+v", path, st)
		}
	}

	resp := env.do(t, http.MethodPost, "/api/counter/increment", "", http.Header{HeaderUserName: {"Ada"}})
	st := decode[domain.CounterState](t, resp)
	if st.Value != 1 || st.LastUpdater == nil || *st.LastUpdater != "Ada" {
		t.Errorf("increment (empty body) = %+v", st)
	}

	resp = env.do(t, http.MethodPost, "/api/counter/increment", `{"amount":10}`, http.Header{HeaderUserEmail: {"grace@example.com"}})
	st = decode[domain.CounterState](t, resp)
	if st.Value != 11 || *st.LastUpdater != "grace" {
		t.Errorf("increment 10 = %+v", st)
	}

	resp = env.do(t, http.MethodPost, "/api/counter/decrement", `{"amount":20}`, nil)
	st = decode[domain.CounterState](t, resp)
	if st.Value != -9 || st.TotalIncrements != 11 || st.TotalDecrements != 20 || *st.LastUpdater != domain.AnonymousLabel {
		t.Errorf("decrement 20 = %+v", st)
	}
	if st.TotalIncrements-st.TotalDecrements != st.Value {
		t.Errorf("totals %d/%d do not net to value %d", st.TotalIncrements, st.TotalDecrements, st.Value)
	}
}

func TestNamedCounters(t *testing.T) {
	env := newTestEnv(t, nil)

	env.do(t, http.MethodPost, "/api/counters/blue/increment", `{"amount":3}`, nil)
	env.do(t, http.MethodPost, "/api/counters/green/increment", `{"amount":5}`, nil)

	blue := decode[domain.CounterState](t, env.do(t, http.MethodGet, "/api/counters/blue/", "", nil))
	green := decode[domain.CounterState](t, env.do(t, http.MethodGet, "/api/counters/green", "", nil))
	global := decode[domain.CounterState](t, env.do(t, http.MethodGet, "/api/counter/", "", nil))

	if blue.Value != 3 || green.Value != 5 || global.Value != 0 {
		t.Errorf("blue=%d green=%d global=%d", blue.Value, green.Value, global.Value)
	}
}

func TestCounterErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"zero amount", http.MethodPost, "/api/counter/increment", `{"amount":0}`, 400, "TM-CNTR-4001"},
		{"amount too large", http.MethodPost, "/api/counter/increment", `{"amount":1001}`, 400, "TM-CNTR-4001"},
		{"fractional amount", http.MethodPost, "/api/counter/decrement", `{"amount":1.5}`, 400, "TM-CNTR-4001"},
		{"negative amount", http.MethodPost, "/api/counter/decrement", `{"amount":-1}`, 400, "TM-CNTR-4001"},
		{"malformed body", http.MethodPost, "/api/counter/increment", `{"amount":`, 400, "TM-SYS-4000"},
		{"string amount", http.MethodPost, "/api/counter/increment", `{"amount":"5"}`, 400, "TM-SYS-4000"},
		{"bad counter name", http.MethodGet, "/api/counters/bad.name/", "", 400, "TM-CNTR-4002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, tt.method, tt.path, tt.body, nil)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if got := resp.Header.Get("X-Error-Code"); got != tt.wantCode {
				t.Errorf("X-Error-Code = %q, want %q", got, tt.wantCode)
			}
			body := decode[ErrorResponse](t, resp)
			if body.Code != tt.wantCode || body.Message == "" || body.Timestamp == 0 {
				t.Errorf("envelope = %+v", body)
			}
		})
	}

	// rejected mutations leave the counter untouched
	st := decode[domain.CounterState](t, env.do(t, http.MethodGet, "/api/counter/", "", nil))
	if st.Value != 0 || st.TotalIncrements != 0 || st.TotalDecrements != 0 {
		t.Errorf("state after rejected calls = %+v", st)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.do(t, http.MethodGet, "/api/counter/increment", "", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestUnknownAPIRoute(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/counter/reset"},
		{http.MethodPost, "/api/counters/blue/reset"},
		{http.MethodGet, "/api/nothing"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp := env.do(t, tt.method, tt.path, "", nil)
			if resp.StatusCode != http.StatusNotFound {
				t.Errorf("status = %d, want 404", resp.StatusCode)
			}
			if got := resp.Header.Get("X-Error-Code"); got != domain.ErrNotFound.Code {
				t.Errorf("X-Error-Code = %q, want %q", got, domain.ErrNotFound.Code)
			}
			if body := decode[ErrorResponse](t, resp); body.Code != domain.ErrNotFound.Code {
				t.Errorf("envelope = %+v", body)
			}
		})
	}

	st := decode[domain.CounterState](t, env.do(t, http.MethodGet, "/api/counter/", "", nil))
	if st.Value != 0 || st.LastUpdater != nil {
		t.Errorf("unknown route touched the counter: %+v", st)
	}
}

func TestSocketRoutesRequireUpgrade(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{"/api/counter/websocket", "/api/connection-counter/websocket"} {
		resp := env.do(t, http.MethodGet, path, "", nil)
		if resp.StatusCode != http.StatusUpgradeRequired {
			t.Errorf("GET %s status = %d, want 426", path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
			t.Errorf("Content-Type = %q, want text/plain", ct)
		}
	}
}

func TestCounterSocket_ReceivesStateAndUpdates(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodPost, "/api/counter/increment", `{"amount":2}`, nil)

	conn := env.dial(t, "/api/counter/websocket")
	if err := conn.WriteMessage(websocket.TextMessage, domain.SubscribeFrame(time.Now()).Encode()); err != nil {
		t.Fatal(err)
	}

	f := readFrame(t, conn, domain.TypeCounterState)
	if f.Data == nil || f.Data.Value != 2 {
		t.Fatalf("counter-state = %+v", f)
	}

	env.do(t, http.MethodPost, "/api/counter/increment", `{"amount":3}`, nil)
	f = readFrame(t, conn, domain.TypeCounterUpdate)
	if f.Data == nil || f.Data.Value != 5 {
		t.Errorf("counter-update = %+v", f)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(domain.PingFrame)); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for pong: %v", err)
		}
		if string(raw) == domain.PongFrame {
			break
		}
	}
}

func TestPresence_CountsSockets(t *testing.T) {
	env := newTestEnv(t, nil)

	a := env.dial(t, "/api/connection-counter/websocket")
	if f := readFrame(t, a, domain.TypeConnectionCount); f.Count == nil || *f.Count != 1 {
		t.Fatalf("first connection-count = %+v", f)
	}

	b := env.dial(t, "/api/connection-counter/websocket")
	if f := readFrame(t, a, domain.TypeConnectionCount); *f.Count != 2 {
		t.Errorf("count after second open = %d, want 2", *f.Count)
	}

	got := decode[CountResponse](t, env.do(t, http.MethodGet, "/api/connection-counter/", "", nil))
	if got.Count != 2 {
		t.Errorf("GET count = %d, want 2", got.Count)
	}

	_ = b.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if f := readFrame(t, a, domain.TypeConnectionCount); *f.Count != 1 {
		t.Errorf("count after close = %d, want 1", *f.Count)
	}
}

func TestSocketCapacity(t *testing.T) {
	env := newTestEnv(t, nil)
	for i := 0; i < 4; i++ {
		env.dial(t, "/api/counter/websocket")
	}

	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/api/counter/websocket"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if !errors.Is(err, websocket.ErrBadHandshake) {
		t.Fatalf("fifth dial error = %v, want bad handshake", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable || resp.Header.Get("Retry-After") != "60" {
		t.Errorf("status = %d Retry-After = %q", resp.StatusCode, resp.Header.Get("Retry-After"))
	}

	// the ceiling is per actor
	env.dial(t, "/api/counters/other/websocket")
}

func TestHealthAndReady(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		env := newTestEnv(t, nil)
		h := decode[HealthResponse](t, env.do(t, http.MethodGet, "/health", "", nil))
		if h.Status != "healthy" || h.Version == "" {
			t.Errorf("health = %+v", h)
		}
		resp := env.do(t, http.MethodGet, "/ready", "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("ready status = %d", resp.StatusCode)
		}
	})

	t.Run("not ready", func(t *testing.T) {
		env := newTestEnv(t, func(context.Context) error { return errors.New("storage down") })
		resp := env.do(t, http.MethodGet, "/ready", "", nil)
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("ready status = %d, want 503", resp.StatusCode)
		}
		if got := resp.Header.Get("X-Error-Code"); got != domain.ErrServiceUnavailable.Code {
			t.Errorf("X-Error-Code = %q, want %q", got, domain.ErrServiceUnavailable.Code)
		}
		if h := decode[HealthResponse](t, resp); h.Error != "storage down" {
			t.Errorf("ready = %+v", h)
		}
	})
}

func TestStatusForCode(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{"TM-CNTR-4001", 400},
		{"TM-SOCK-4260", 426},
		{"TM-SOCK-5030", 503},
		{"TM-ACTR-5031", 503},
		{"TM-SYS-4290", 429},
		{"TM-SYS-5001", 500},
		{"TM-SYS-12", 500},
		{"garbage", 500},
		{"TM-X-2000", 500},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := StatusForCode(tt.code); got != tt.want {
				t.Errorf("StatusForCode(%q) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}

func TestHeaderIdentity(t *testing.T) {
	tests := []struct {
		name  string
		user  string
		email string
		want  string
	}{
		{"name wins", "Ada", "ada@example.com", "Ada"},
		{"email local part", "", "grace@example.com", "grace"},
		{"anonymous", "", "", domain.AnonymousLabel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.user != "" {
				r.Header.Set(HeaderUserName, tt.user)
			}
			if tt.email != "" {
				r.Header.Set(HeaderUserEmail, tt.email)
			}
			if got := (HeaderIdentity{}).Identify(r).Label(); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
		})
	}
}

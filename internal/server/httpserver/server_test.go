package httpserver

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yndnr/tallymesh/internal/core/actor"
	"github.com/yndnr/tallymesh/internal/core/domain"
	"github.com/yndnr/tallymesh/internal/core/service"
	"github.com/yndnr/tallymesh/internal/server/httpserver/handler"
	"github.com/yndnr/tallymesh/internal/storage"
	"github.com/yndnr/tallymesh/internal/storage/memory"
	"github.com/yndnr/tallymesh/internal/telemetry/metric"
	"github.com/yndnr/tallymesh/internal/transport"
)

// startServer runs the full router on a loopback listener.
func startServer(t *testing.T) (string, *metric.Registry) {
	t.Helper()

	reg := transport.NewRegistry()
	metrics := metric.NewRegistry()
	counters := actor.NewNamespace(actor.KindCounter, actor.NewCounterFactory(&actor.CounterEnv{
		Store:   storage.NewCounterStore(memory.New()),
		Sockets: reg,
		Metrics: metrics,
	}), actor.NamespaceOptions{Metrics: metrics})
	presence := actor.NewNamespace(actor.KindPresence, actor.NewPresenceFactory(&actor.PresenceEnv{
		Sockets: reg,
	}), actor.NamespaceOptions{Metrics: metrics})

	router := NewRouter(&RouterConfig{
		Deps: handler.Deps{
			Counters:       service.NewCounterService(counters, time.Second, nil),
			Presence:       service.NewPresenceService(presence, time.Second),
			Acceptor:       transport.NewAcceptor(transport.DefaultConfig(), reg, nil),
			CounterEvents:  actor.NewDispatcher(counters, actor.DefaultSettleDelay, time.Second, nil),
			PresenceEvents: actor.NewDispatcher(presence, actor.DefaultSettleDelay, time.Second, nil),
		},
		Metrics:      metrics,
		RateLimitRPS: 1000,
		EnableAudit:  true,
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := New(Config{ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second}, router, nil)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	t.Cleanup(func() {
		reg.CloseAll(websocket.CloseGoingAway, "shutdown")
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
		if err := <-done; err != nil {
			t.Errorf("Serve() error = %v", err)
		}
		counters.Close()
		presence.Close()
	})
	return ln.Addr().String(), metrics
}

func TestServer_EndToEnd(t *testing.T) {
	addr, _ := startServer(t)

	resp, err := http.Post("http://"+addr+"/api/counter/increment", "application/json", strings.NewReader(`{"amount":4}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("increment status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}

	// the socket upgrade passes through every middleware
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/api/counter/websocket", nil)
	if err != nil {
		t.Fatalf("dial through middleware: %v", err)
	}
	defer conn.Close()
	if err := conn.WriteMessage(websocket.TextMessage, domain.SubscribeFrame(time.Now()).Encode()); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"value":4`) {
		t.Errorf("first frame = %s", raw)
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	addr, _ := startServer(t)

	r, err := http.Get("http://" + addr + "/api/counter/")
	if err != nil {
		t.Fatal(err)
	}
	r.Body.Close()

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		"tallymesh_http_request_duration_seconds",
		`route="GET /api/counter/{$}"`,
		`tallymesh_actor_activations_total{kind="counter"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}

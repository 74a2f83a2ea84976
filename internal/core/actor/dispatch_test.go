package actor

import (
	"context"
	"testing"
	"time"

	"github.com/yndnr/tallymesh/internal/core/domain"
)

func TestDispatcher_RoutesAndDelaysClose(t *testing.T) {
	sockets := &fakeSockets{}
	env := &PresenceEnv{Sockets: sockets}
	ns := NewNamespace(KindPresence, NewPresenceFactory(env), NamespaceOptions{})
	defer ns.Close()

	const settle = 30 * time.Millisecond
	d := NewDispatcher(ns, settle, time.Second, nil)
	ctx := context.Background()

	a := sockets.add(newFakePeer("a", testPresence))
	b := sockets.add(newFakePeer("b", testPresence))
	d.WebSocketOpen(ctx, a)
	d.WebSocketOpen(ctx, b)
	d.WebSocketMessage(ctx, a, []byte("ping"))

	if got := a.raw(); got[len(got)-1] != "pong" {
		t.Errorf("last frame = %q, want pong", got[len(got)-1])
	}
	if ns.Len() != 1 {
		t.Errorf("Len() = %d, want 1", ns.Len())
	}

	// passivation between events does not lose the subscriber set
	ns.Passivate(testPresence)
	waitUntil(t, func() bool { return ns.Len() == 0 })

	sockets.remove(b)
	b.Close(1000, "")
	start := time.Now()
	d.WebSocketClose(ctx, b, 1000, "")
	d.Wait()
	if elapsed := time.Since(start); elapsed < settle {
		t.Errorf("close delivered after %v, want at least %v", elapsed, settle)
	}

	last, ok := a.lastOf(t, domain.TypeConnectionCount)
	if !ok || *last.Count != 1 {
		t.Errorf("count after close = %v, want 1", last.Count)
	}
}

func TestMailbox_StopWaitsForRunningCall(t *testing.T) {
	m := newMailbox()
	started := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = m.do(context.Background(), func() {
			close(started)
			<-release
		})
	}()
	<-started

	stopped := make(chan struct{})
	go func() {
		m.stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("stop() returned while a call was running")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	<-stopped

	if err := m.do(context.Background(), func() {}); err != domain.ErrActorPassivated {
		t.Errorf("do() after stop = %v, want ErrActorPassivated", err)
	}
}

func TestMailbox_CanceledContext(t *testing.T) {
	m := newMailbox()
	defer m.stop()

	block := make(chan struct{})
	go func() { _ = m.do(context.Background(), func() { <-block }) }()
	defer close(block)
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.do(ctx, func() { t.Error("canceled call ran") }); err != context.Canceled {
		t.Errorf("do() = %v, want context.Canceled", err)
	}
}

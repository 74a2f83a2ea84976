package actor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/tallymesh/internal/core/domain"
	"github.com/yndnr/tallymesh/internal/transport"
)

var errDiskFull = errors.New("disk full")

type fakeStore struct {
	mu      sync.Mutex
	rows    map[string]domain.CounterState
	alarms  map[string]time.Time
	saveErr error
	// beforeSave runs at the start of every Save.
	beforeSave func()

	ensures   int
	created   int
	loads     int
	saves     int
	setAlarms int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rows:   make(map[string]domain.CounterState),
		alarms: make(map[string]time.Time),
	}
}

func (s *fakeStore) Ensure(_ context.Context, name string, initial domain.CounterState) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensures++
	if _, ok := s.rows[name]; ok {
		return false, nil
	}
	s.rows[name] = initial
	s.created++
	return true, nil
}

func (s *fakeStore) Load(_ context.Context, name string) (domain.CounterState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	st, ok := s.rows[name]
	if !ok {
		return domain.CounterState{}, errors.New("not found")
	}
	return st, nil
}

func (s *fakeStore) Save(ctx context.Context, name string, st domain.CounterState) error {
	if s.beforeSave != nil {
		s.beforeSave()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.rows[name] = st
	return nil
}

func (s *fakeStore) Alarm(_ context.Context, name string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alarms[name], nil
}

func (s *fakeStore) SetAlarm(_ context.Context, name string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setAlarms++
	s.alarms[name] = at
	return nil
}

func (s *fakeStore) failSaves(err error) {
	s.mu.Lock()
	s.saveErr = err
	s.mu.Unlock()
}

func (s *fakeStore) stats() (ensures, created, loads, setAlarms int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensures, s.created, s.loads, s.setAlarms
}

type fakeAlarms struct {
	mu     sync.Mutex
	armed  map[string]time.Time
	arms   int
	rearms int
}

func newFakeAlarms() *fakeAlarms {
	return &fakeAlarms{armed: make(map[string]time.Time)}
}

func (a *fakeAlarms) Arm(name string, at time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.armed[name]; ok {
		return false
	}
	a.arms++
	a.armed[name] = at
	return true
}

func (a *fakeAlarms) Rearm(name string, at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rearms++
	a.armed[name] = at
}

// fakePeer records what it is sent.
type fakePeer struct {
	id   string
	name string

	mu     sync.Mutex
	state  transport.State
	tags   map[string]bool
	frames [][]byte
	closed int
}

func newFakePeer(id, name string, tags ...string) *fakePeer {
	p := &fakePeer{id: id, name: name, state: transport.StateOpen, tags: make(map[string]bool)}
	for _, t := range tags {
		p.tags[t] = true
	}
	return p
}

func (p *fakePeer) ID() string   { return p.id }
func (p *fakePeer) Name() string { return p.name }

func (p *fakePeer) State() transport.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *fakePeer) Send(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != transport.StateOpen {
		return domain.ErrSocketClosed
	}
	p.frames = append(p.frames, append([]byte(nil), data...))
	return nil
}

func (p *fakePeer) Tag(topic string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tags[topic] {
		return false
	}
	p.tags[topic] = true
	return true
}

func (p *fakePeer) Untag(topic string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.tags[topic] {
		return false
	}
	delete(p.tags, topic)
	return true
}

func (p *fakePeer) HasTag(topic string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tags[topic]
}

func (p *fakePeer) Close(int, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = transport.StateClosed
	p.closed++
}

func (p *fakePeer) raw() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.frames))
	for i, f := range p.frames {
		out[i] = string(f)
	}
	return out
}

// decoded returns the JSON frames received, skipping raw text.
func (p *fakePeer) decoded(t *testing.T) []domain.Frame {
	t.Helper()
	var out []domain.Frame
	for _, raw := range p.raw() {
		if raw == domain.PongFrame {
			continue
		}
		var f domain.Frame
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			t.Fatalf("undecodable frame %q: %v", raw, err)
		}
		out = append(out, f)
	}
	return out
}

func (p *fakePeer) lastOf(t *testing.T, typ domain.MessageType) (domain.Frame, bool) {
	t.Helper()
	frames := p.decoded(t)
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].Type == typ {
			return frames[i], true
		}
	}
	return domain.Frame{}, false
}

// fakeSockets is an in-memory SocketSource.
type fakeSockets struct {
	mu    sync.Mutex
	peers []*fakePeer
}

func (s *fakeSockets) add(p *fakePeer) *fakePeer {
	s.mu.Lock()
	s.peers = append(s.peers, p)
	s.mu.Unlock()
	return p
}

func (s *fakeSockets) remove(p *fakePeer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, q := range s.peers {
		if q == p {
			s.peers = append(s.peers[:i], s.peers[i+1:]...)
			return
		}
	}
}

func (s *fakeSockets) Sockets(name, topic string) []transport.Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []transport.Peer
	for _, p := range s.peers {
		if p.name == name && p.State() == transport.StateOpen && (topic == "" || p.HasTag(topic)) {
			out = append(out, p)
		}
	}
	return out
}

func (s *fakeSockets) Count(name, topic string) int {
	return len(s.Sockets(name, topic))
}

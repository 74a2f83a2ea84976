package actor

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yndnr/tallymesh/internal/core/domain"
	"github.com/yndnr/tallymesh/internal/telemetry/logger"
	"github.com/yndnr/tallymesh/internal/telemetry/metric"
	"github.com/yndnr/tallymesh/internal/transport"
)

// KindPresence labels presence actors in metrics and logs.
const KindPresence = "presence"

// PresenceEnv holds the collaborators shared by every Presence.
type PresenceEnv struct {
	Sockets SocketSource
	Clock   func() time.Time
	Logger  logger.Logger
	Metrics *metric.Registry
}

// Presence counts the open sockets tagged connection-updates. It keeps no
// state of its own, so a fresh instance reports whatever the registry
// holds.
type Presence struct {
	name string
	env  *PresenceEnv
	log  logger.Logger
	mb   *mailbox
}

// NewPresence creates a presence actor.
func NewPresence(name string, env *PresenceEnv) *Presence {
	log := env.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Presence{
		name: name,
		env:  env,
		log:  log.With("actor", name, "actor_kind", KindPresence),
		mb:   newMailbox(),
	}
}

// NewPresenceFactory returns a constructor for Namespace.
func NewPresenceFactory(env *PresenceEnv) func(name string) *Presence {
	return func(name string) *Presence { return NewPresence(name, env) }
}

func (p *Presence) Name() string { return p.name }

func (p *Presence) stop() { p.mb.stop() }

// Count returns the number of open subscribed sockets.
func (p *Presence) Count(ctx context.Context) (int, error) {
	return call(ctx, p.mb, func() (int, error) {
		return p.count(), nil
	})
}

func (p *Presence) WebSocketOpen(ctx context.Context, peer transport.Peer) error {
	return p.mb.do(ctx, func() {
		peer.Tag(domain.TopicConnectionUpdates)
		p.broadcastCount()
	})
}

func (p *Presence) WebSocketMessage(ctx context.Context, peer transport.Peer, data []byte) error {
	msg := domain.DecodeInbound(data)
	if _, ok := msg.(domain.Ping); ok {
		p.send(peer, []byte(domain.PongFrame))
		return nil
	}

	return p.mb.do(ctx, func() {
		switch m := msg.(type) {
		case domain.Subscribe:
			peer.Tag(domain.TopicConnectionUpdates)
			p.broadcastCount()
		case domain.Unsubscribe:
			peer.Untag(domain.TopicConnectionUpdates)
			p.broadcastCount()
		case domain.Unknown:
			p.log.Debug("ignoring socket message", "socket_id", peer.ID(), "type", m.Type)
		}
	})
}

func (p *Presence) WebSocketClose(ctx context.Context, peer transport.Peer, code int, _ string) error {
	return p.mb.do(ctx, func() {
		p.log.Debug("socket closed", "socket_id", peer.ID(), "code", code)
		p.broadcastCount()
	})
}

func (p *Presence) WebSocketError(_ context.Context, peer transport.Peer, err error) error {
	p.log.Warn("socket error", "socket_id", peer.ID(), "error", err)
	peer.Close(websocket.CloseInternalServerErr, "socket error")
	return nil
}

func (p *Presence) count() int {
	return p.env.Sockets.Count(p.name, domain.TopicConnectionUpdates)
}

func (p *Presence) broadcastCount() {
	now := time.Now()
	if p.env.Clock != nil {
		now = p.env.Clock()
	}
	frame := domain.ConnectionCountFrame(p.count(), now).Encode()
	transport.Broadcast(p.env.Sockets.Sockets(p.name, domain.TopicConnectionUpdates), frame, p.sendFailed)
}

func (p *Presence) send(peer transport.Peer, frame []byte) {
	if err := peer.Send(frame); err != nil {
		p.sendFailed(peer, err)
	}
}

func (p *Presence) sendFailed(peer transport.Peer, err error) {
	p.log.Debug("send failed", "socket_id", peer.ID(), "error", err)
	if p.env.Metrics != nil {
		p.env.Metrics.BroadcastFailures.Inc()
	}
}

package transport

import (
	"github.com/yndnr/tallymesh/internal/core/domain"
	"github.com/yndnr/tallymesh/pkg/cmap"
)

// group is the set of sockets attached to one actor, keyed by socket ID.
type group map[string]*Socket

// Registry tracks every live socket by actor name. It outlives actor
// instances.
type Registry struct {
	groups *cmap.Map[group]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{groups: cmap.New[group]()}
}

// add registers s unless its actor already holds limit sockets in any
// state. A limit <= 0 disables the check.
func (r *Registry) add(s *Socket, limit int) error {
	var err error
	r.groups.Compute(s.name, func(g group, ok bool) (group, bool) {
		if !ok {
			g = make(group)
		}
		if limit > 0 && len(g) >= limit {
			err = domain.ErrTooManyConnections
			return g, len(g) > 0
		}
		g[s.id] = s
		return g, true
	})
	return err
}

func (r *Registry) remove(s *Socket) {
	r.groups.Compute(s.name, func(g group, ok bool) (group, bool) {
		if !ok {
			return nil, false
		}
		delete(g, s.id)
		return g, len(g) > 0
	})
}

// Sockets returns the OPEN sockets of actor name that carry topic. An
// empty topic matches every OPEN socket.
func (r *Registry) Sockets(name, topic string) []Peer {
	var out []Peer
	r.groups.View(name, func(g group, _ bool) {
		out = make([]Peer, 0, len(g))
		for _, s := range g {
			if s.State() == StateOpen && (topic == "" || s.HasTag(topic)) {
				out = append(out, s)
			}
		}
	})
	return out
}

// Count returns the number of OPEN sockets of actor name carrying topic.
func (r *Registry) Count(name, topic string) int {
	n := 0
	r.groups.View(name, func(g group, _ bool) {
		for _, s := range g {
			if s.State() == StateOpen && (topic == "" || s.HasTag(topic)) {
				n++
			}
		}
	})
	return n
}

// Total returns the number of sockets of actor name in any state. It is
// the figure admission control compares against.
func (r *Registry) Total(name string) int {
	n := 0
	r.groups.View(name, func(g group, _ bool) { n = len(g) })
	return n
}

// Len returns the number of sockets across all actors.
func (r *Registry) Len() int {
	n := 0
	r.groups.Range(func(_ string, g group) bool {
		n += len(g)
		return true
	})
	return n
}

// CountByKind returns the number of OPEN sockets per actor kind.
func (r *Registry) CountByKind() map[string]int {
	out := make(map[string]int)
	r.groups.Range(func(_ string, g group) bool {
		for _, s := range g {
			if s.State() == StateOpen {
				out[s.kind]++
			}
		}
		return true
	})
	return out
}

// CloseAll closes every socket with the given code. Used on shutdown.
func (r *Registry) CloseAll(code int, reason string) int {
	var all []*Socket
	r.groups.Range(func(_ string, g group) bool {
		for _, s := range g {
			all = append(all, s)
		}
		return true
	})
	for _, s := range all {
		s.Close(code, reason)
	}
	return len(all)
}

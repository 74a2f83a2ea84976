package service

import (
	"context"
	"time"

	"github.com/yndnr/tallymesh/internal/core/actor"
)

// PresenceService reads connection counts.
type PresenceService struct {
	ns      *actor.Namespace[*actor.Presence]
	timeout time.Duration
}

// NewPresenceService creates a PresenceService.
func NewPresenceService(ns *actor.Namespace[*actor.Presence], timeout time.Duration) *PresenceService {
	if timeout <= 0 {
		timeout = actor.DefaultCallTimeout
	}
	return &PresenceService{ns: ns, timeout: timeout}
}

// Count returns the number of subscribed connections for name.
func (s *PresenceService) Count(ctx context.Context, name string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var n int
	err := s.ns.Do(ctx, name, func(p *actor.Presence) error {
		var err error
		n, err = p.Count(ctx)
		return err
	})
	return n, err
}

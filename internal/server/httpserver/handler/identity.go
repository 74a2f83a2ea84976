package handler

import (
	"net/http"

	"github.com/yndnr/tallymesh/internal/core/domain"
)

// Identity headers read by HeaderIdentity.
const (
	HeaderUserName  = "X-User-Name"
	HeaderUserEmail = "X-User-Email"
)

// IdentityProvider resolves the caller of a request. It never fails;
// an unknown caller is the zero Identity.
type IdentityProvider interface {
	Identify(r *http.Request) domain.Identity
}

// HeaderIdentity reads the identity set by a fronting proxy.
type HeaderIdentity struct{}

func (HeaderIdentity) Identify(r *http.Request) domain.Identity {
	return domain.Identity{
		Name:  r.Header.Get(HeaderUserName),
		Email: r.Header.Get(HeaderUserEmail),
	}
}

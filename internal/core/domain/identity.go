package domain

import "strings"

// AnonymousLabel is recorded when a mutation carries no usable identity.
const AnonymousLabel = "Anonymous"

// Identity is the caller as reported by the identity provider. Both
// fields may be empty.
type Identity struct {
	Name  string
	Email string
}

// Label returns the updater label stored with a mutation: the display
// name, else the local part of the email, else AnonymousLabel.
func (id Identity) Label() string {
	if name := strings.TrimSpace(id.Name); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(strings.TrimSpace(id.Email), "@"); ok && local != "" {
		return local
	}
	return AnonymousLabel
}

// Package buildinfo provides build information for TallyMesh.
//
// Values are injected via ldflags; when they are not, Get falls back to
// the module and VCS data embedded by the Go toolchain.
//
//	go build -ldflags "-X github.com/yndnr/tallymesh/internal/infra/buildinfo.Version=v1.0.0"
package buildinfo

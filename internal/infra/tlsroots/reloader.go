// Package tlsroots provides TLS certificate management.
package tlsroots

import (
	"crypto/tls"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/yndnr/tallymesh/internal/infra/confloader"
	"github.com/yndnr/tallymesh/internal/telemetry/logger"
)

// Reloader serves the server key pair and swaps it when the files are
// rewritten. A failed reload keeps the previous pair.
type Reloader struct {
	certFile string
	keyFile  string
	log      logger.Logger

	mu   sync.RWMutex
	cert *tls.Certificate
}

// NewReloader loads the key pair once.
func NewReloader(certFile, keyFile string, log logger.Logger) (*Reloader, error) {
	if log == nil {
		log = logger.Discard()
	}
	r := &Reloader{certFile: certFile, keyFile: keyFile, log: log}
	if err := r.Reload(); err != nil {
		return nil, fmt.Errorf("tlsroots: initial load: %w", err)
	}
	return r, nil
}

// Reload reads the key pair from disk.
func (r *Reloader) Reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}

	r.mu.Lock()
	r.cert = &cert
	r.mu.Unlock()

	r.log.Info("certificate loaded", "cert_file", r.certFile)
	return nil
}

// Watch reloads the pair whenever w reports a change to either file.
func (r *Reloader) Watch(w *confloader.Watcher) error {
	for _, f := range []string{r.certFile, r.keyFile} {
		if err := w.Watch(f); err != nil {
			return err
		}
	}

	certAbs, _ := filepath.Abs(r.certFile)
	keyAbs, _ := filepath.Abs(r.keyFile)
	w.OnChange(func(path string) {
		if path != certAbs && path != keyAbs {
			if abs, _ := filepath.Abs(path); abs != certAbs && abs != keyAbs {
				return
			}
		}
		if err := r.Reload(); err != nil {
			r.log.Error("certificate reload failed", "error", err, "cert_file", r.certFile)
		}
	})
	return nil
}

// GetCertificate implements tls.Config.GetCertificate.
func (r *Reloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cert, nil
}

// ServerConfig returns a TLS config backed by the reloader.
func (r *Reloader) ServerConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: r.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
}

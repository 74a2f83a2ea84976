package tlsroots

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yndnr/tallymesh/internal/infra/confloader"
	"github.com/yndnr/tallymesh/internal/telemetry/logger"
)

// writeKeyPair writes a self-signed certificate and key and returns
// the certificate serial.
func writeKeyPair(t *testing.T, certFile, keyFile string, serial int64) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject: pkix.Name{
			Organization: []string{"Test Org"},
			CommonName:   "test.local",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate() error = %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey() error = %v", err)
	}

	if err := os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0600); err != nil {
		t.Fatal(err)
	}
}

func servedSerial(t *testing.T, r *Reloader) int64 {
	t.Helper()
	cert, _ := r.GetCertificate(nil)
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatal(err)
	}
	return leaf.SerialNumber.Int64()
}

func TestAppendPEM(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := filepath.Join(dir, "a.crt"), filepath.Join(dir, "a.key")
	writeKeyPair(t, certFile, keyFile, 1)
	data, _ := os.ReadFile(certFile)

	pool := x509.NewCertPool()
	if err := AppendPEM(pool, data); err != nil {
		t.Errorf("AppendPEM() error = %v", err)
	}

	keyOnly, _ := os.ReadFile(keyFile)
	if err := AppendPEM(pool, keyOnly); !errors.Is(err, ErrNoCertsFound) {
		t.Errorf("AppendPEM(key) error = %v, want ErrNoCertsFound", err)
	}

	bad := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte("garbage")})
	if err := AppendPEM(pool, bad); err == nil {
		t.Error("AppendPEM() should reject an unparsable certificate")
	}
}

func TestClientConfig(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "ca.crt")
	writeKeyPair(t, certFile, filepath.Join(dir, "ca.key"), 1)

	cfg, err := ClientConfig(certFile, false)
	if err != nil {
		t.Fatalf("ClientConfig() error = %v", err)
	}
	if cfg.RootCAs == nil || cfg.InsecureSkipVerify {
		t.Error("ClientConfig() should trust roots and verify")
	}

	if _, err := ClientConfig(filepath.Join(dir, "missing.crt"), false); err == nil {
		t.Error("ClientConfig() should fail for a missing CA file")
	}
}

func TestReloader_Reload(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := filepath.Join(dir, "tls.crt"), filepath.Join(dir, "tls.key")
	writeKeyPair(t, certFile, keyFile, 1)

	r, err := NewReloader(certFile, keyFile, logger.Discard())
	if err != nil {
		t.Fatalf("NewReloader() error = %v", err)
	}
	if servedSerial(t, r) != 1 {
		t.Error("initial certificate not served")
	}
	if r.ServerConfig().GetCertificate == nil {
		t.Error("ServerConfig() should use GetCertificate")
	}

	writeKeyPair(t, certFile, keyFile, 2)
	if err := r.Reload(); err != nil {
		t.Fatal(err)
	}
	if servedSerial(t, r) != 2 {
		t.Error("Reload() did not swap the certificate")
	}

	// a broken pair keeps the previous one
	if err := os.WriteFile(keyFile, []byte("nope"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(); err == nil {
		t.Error("Reload() should fail on a broken key")
	}
	if servedSerial(t, r) != 2 {
		t.Error("failed reload replaced the certificate")
	}
}

func TestNewReloader_MissingFiles(t *testing.T) {
	if _, err := NewReloader("/nonexistent/tls.crt", "/nonexistent/tls.key", nil); err == nil {
		t.Error("NewReloader() should fail for missing files")
	}
}

func TestReloader_Watch(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := filepath.Join(dir, "tls.crt"), filepath.Join(dir, "tls.key")
	writeKeyPair(t, certFile, keyFile, 1)

	r, err := NewReloader(certFile, keyFile, nil)
	if err != nil {
		t.Fatal(err)
	}
	w, err := confloader.NewWatcher(confloader.WithDebounce(50 * time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if err := r.Watch(w); err != nil {
		t.Fatal(err)
	}
	w.StartAsync()
	time.Sleep(50 * time.Millisecond)

	writeKeyPair(t, certFile, keyFile, 7)

	deadline := time.Now().Add(3 * time.Second)
	for servedSerial(t, r) != 7 {
		if time.Now().After(deadline) {
			t.Fatal("certificate not reloaded after file change")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

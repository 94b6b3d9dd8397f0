package netdp

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureCert_GeneratesAndReuses(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "server.crt")
	keyPath := filepath.Join(dir, "server.key")

	if err := EnsureCert(certPath, keyPath); err != nil {
		t.Fatalf("EnsureCert: %v", err)
	}
	if _, err := tls.LoadX509KeyPair(certPath, keyPath); err != nil {
		t.Fatalf("generated pair does not load: %v", err)
	}

	before, err := os.ReadFile(certPath)
	if err != nil {
		t.Fatal(err)
	}
	// Second call must keep the existing pair.
	if err := EnsureCert(certPath, keyPath); err != nil {
		t.Fatalf("EnsureCert (reuse): %v", err)
	}
	after, err := os.ReadFile(certPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatal("existing certificate was regenerated")
	}
}

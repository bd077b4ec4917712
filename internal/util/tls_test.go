package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/leonunix/esdoc/internal/config"
)

func TestNewTLSTransport_DefaultIsNil(t *testing.T) {
	tr, err := NewTLSTransport(config.TLSConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr != nil {
		t.Fatal("expected nil transport when TLS is not configured")
	}
}

func TestNewTLSTransport_SkipVerify(t *testing.T) {
	tr, err := NewTLSTransport(config.TLSConfig{SkipVerify: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr == nil || !tr.TLSClientConfig.InsecureSkipVerify {
		t.Fatal("expected InsecureSkipVerify transport")
	}
}

func TestNewTLSTransport_BadCACert(t *testing.T) {
	if _, err := NewTLSTransport(config.TLSConfig{CACert: "/does/not/exist.pem"}); err == nil {
		t.Fatal("expected error for missing CA file")
	}

	path := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(path, []byte("not a certificate"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewTLSTransport(config.TLSConfig{CACert: path}); err == nil {
		t.Fatal("expected error for unparsable CA file")
	}
}

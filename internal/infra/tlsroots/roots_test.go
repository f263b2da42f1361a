package tlsroots

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadClientCAs(t *testing.T) {
	dir := t.TempDir()
	certFile, _ := writeKeyPair(t, dir, "device")
	writeKeyPair(t, dir, "office")
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a cert"), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"single file", certFile, nil},
		{"directory", dir, nil},
		{"empty file", writeEmpty(t), ErrNoCertsFound},
		{"empty directory", t.TempDir(), ErrNoCertsFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, err := LoadClientCAs(tt.path)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadClientCAs() error = %v", err)
			}
			if pool == nil {
				t.Fatal("pool is nil")
			}
		})
	}

	if _, err := LoadClientCAs(filepath.Join(dir, "missing.pem")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestLoadClientCAs_BadCertificate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pem")
	writePEM(t, path, "CERTIFICATE", []byte("garbage"))

	if _, err := LoadClientCAs(path); err == nil {
		t.Error("unparsable certificate should fail")
	}
}

func TestServerConfig(t *testing.T) {
	certFile, keyFile := writeKeyPair(t, t.TempDir(), "server")
	w, err := NewWatcher(certFile, keyFile, 0, nil)
	if err != nil {
		t.Fatal(err)
	}

	cfg := ServerConfig(w, nil)
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %x", cfg.MinVersion)
	}
	if cfg.ClientAuth != tls.NoClientCert {
		t.Errorf("ClientAuth = %v, want NoClientCert", cfg.ClientAuth)
	}

	cfg = ServerConfig(w, x509.NewCertPool())
	if cfg.ClientAuth != tls.RequireAndVerifyClientCert || cfg.ClientCAs == nil {
		t.Errorf("mutual config = %+v", cfg)
	}
}

func TestServerConfig_Handshake(t *testing.T) {
	certFile, keyFile := writeKeyPair(t, t.TempDir(), "server")
	w, err := NewWatcher(certFile, keyFile, 0, nil)
	if err != nil {
		t.Fatal(err)
	}

	ln, err := tls.Listen("tcp", "127.0.0.1:0", ServerConfig(w, nil))
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.(*tls.Conn).Handshake()
	}()

	roots, err := LoadClientCAs(certFile)
	if err != nil {
		t.Fatal(err)
	}
	conn, err := tls.Dial("tcp", ln.Addr().String(), &tls.Config{RootCAs: roots, ServerName: "localhost"})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	conn.Close()
}

func writeEmpty(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "empty.pem")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

package httpserver

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"io"
	"math/big"
	"net"
	"net/http"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	})
}

func TestNew_Defaults(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0", Handler: okHandler()})
	if s.httpServer.ReadHeaderTimeout != 10*time.Second {
		t.Errorf("ReadHeaderTimeout = %v, want 10s", s.httpServer.ReadHeaderTimeout)
	}
	if s.httpServer.IdleTimeout != 60*time.Second {
		t.Errorf("IdleTimeout = %v, want 60s", s.httpServer.IdleTimeout)
	}
	if s.Addr() != "127.0.0.1:0" {
		t.Errorf("Addr before Listen = %q", s.Addr())
	}
	if s.TLS() {
		t.Error("TLS() = true without a tls.Config")
	}
}

func TestServer_ServeBeforeListen(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0", Handler: okHandler()})
	if err := s.Serve(); err == nil {
		t.Fatal("Serve before Listen should fail")
	}
}

func TestServer_ListenTwice(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0", Handler: okHandler()})
	if err := s.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer s.Shutdown(context.Background())
	if err := s.Listen(); err == nil {
		t.Fatal("second Listen should fail")
	}
}

func TestServer_ListenAddrInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	s := New(Config{Addr: ln.Addr().String(), Handler: okHandler()})
	if err := s.Listen(); err == nil {
		t.Fatal("Listen on a bound address should fail")
	}
}

func TestServer_ServeAndShutdown(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0", Handler: okHandler()})
	if err := s.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Serve()
	}()

	resp, err := http.Get("http://" + s.Addr() + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Errorf("body = %q, want ok", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown error: %v", err)
	}

	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("Serve after Shutdown = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for Serve to return")
	}
}

func TestServer_TLS(t *testing.T) {
	cert, pool := selfSigned(t)
	s := New(Config{
		Addr:    "127.0.0.1:0",
		Handler: okHandler(),
		TLS:     &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12},
	})
	if !s.TLS() {
		t.Fatal("TLS() = false")
	}
	if err := s.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go s.Serve()
	defer s.Shutdown(context.Background())

	client := &http.Client{
		Timeout:   5 * time.Second,
		Transport: &http.Transport{TLSClientConfig: &tls.Config{RootCAs: pool}},
	}
	resp, err := client.Get("https://" + s.Addr() + "/")
	if err != nil {
		t.Fatalf("GET https: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Errorf("body = %q, want ok", body)
	}

	plain := &http.Client{Timeout: 2 * time.Second}
	if resp, err := plain.Get("http://" + s.Addr() + "/"); err == nil {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			t.Error("plain HTTP request was served on a TLS endpoint")
		}
	}
}

func TestDefaultRouterConfig(t *testing.T) {
	cfg := DefaultRouterConfig()
	if cfg == nil {
		t.Fatal("DefaultRouterConfig returned nil")
	}
	if cfg.GlobalRateLimit <= 0 {
		t.Error("GlobalRateLimit should be positive")
	}
	if !cfg.AccessLog {
		t.Error("AccessLog should default to true")
	}
}

func selfSigned(t *testing.T) (tls.Certificate, *x509.CertPool) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "fieldstore-ops"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}
	pool := x509.NewCertPool()
	pool.AddCert(leaf)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: leaf}, pool
}

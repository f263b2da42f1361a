package tlsroots

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoCertsFound is returned when a CA source holds no certificate.
var ErrNoCertsFound = errors.New("tlsroots: no certificates found")

// LoadClientCAs reads the CA bundle at path. A directory contributes
// every .pem, .crt and .cer file in it.
func LoadClientCAs(path string) (*x509.CertPool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("tlsroots: %w", err)
	}

	pool := x509.NewCertPool()
	files := []string{path}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("tlsroots: read dir %s: %w", path, err)
		}
		files = files[:0]
		for _, e := range entries {
			switch strings.ToLower(filepath.Ext(e.Name())) {
			case ".pem", ".crt", ".cer":
				if !e.IsDir() {
					files = append(files, filepath.Join(path, e.Name()))
				}
			}
		}
	}

	added := 0
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("tlsroots: read %s: %w", f, err)
		}
		n, err := appendPEM(pool, data)
		if err != nil {
			return nil, fmt.Errorf("tlsroots: %s: %w", f, err)
		}
		added += n
	}
	if added == 0 {
		return nil, ErrNoCertsFound
	}
	return pool, nil
}

func appendPEM(pool *x509.CertPool, data []byte) (int, error) {
	n := 0
	for len(data) > 0 {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return n, fmt.Errorf("parse certificate: %w", err)
		}
		pool.AddCert(cert)
		n++
	}
	return n, nil
}

// ServerConfig returns a TLS 1.2+ config serving the watcher's current
// key pair. A non-nil clientCAs requires and verifies client certificates.
func ServerConfig(w *Watcher, clientCAs *x509.CertPool) *tls.Config {
	cfg := &tls.Config{
		GetCertificate: w.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
	if clientCAs != nil {
		cfg.ClientCAs = clientCAs
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return cfg
}

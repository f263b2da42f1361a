package httpserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Config describes the TCP ops endpoint.
type Config struct {
	// Addr is the listen address; port 0 picks a free port.
	Addr string
	// Handler serves every request, usually the result of NewRouter.
	Handler http.Handler
	// TLS enables HTTPS when non-nil.
	TLS *tls.Config
	// ReadHeaderTimeout defaults to 10s.
	ReadHeaderTimeout time.Duration
	// IdleTimeout defaults to 60s.
	IdleTimeout time.Duration
}

// Server is the ops endpoint bound to a TCP address.
type Server struct {
	cfg        Config
	httpServer *http.Server
	listener   net.Listener
}

// New creates a server. Nothing is bound until Listen.
func New(cfg Config) *Server {
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	return &Server{
		cfg: cfg,
		httpServer: &http.Server{
			Handler:           cfg.Handler,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
	}
}

// Listen binds the address, wrapping the listener in TLS when configured.
func (s *Server) Listen() error {
	if s.listener != nil {
		return errors.New("httpserver: already listening")
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("httpserver: listen %s: %w", s.cfg.Addr, err)
	}
	if s.cfg.TLS != nil {
		ln = tls.NewListener(ln, s.cfg.TLS)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.Addr
	}
	return s.listener.Addr().String()
}

// TLS reports whether the endpoint serves HTTPS.
func (s *Server) TLS() bool {
	return s.cfg.TLS != nil
}

// Serve accepts connections until Shutdown. A clean shutdown returns nil.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("httpserver: Serve called before Listen")
	}
	if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

package localserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// Server serves HTTP on a Unix domain socket.
type Server struct {
	path       string
	httpServer *http.Server
	listener   net.Listener
	running    atomic.Bool
}

// New creates a new local server for handler.
func New(socketPath string, handler http.Handler) *Server {
	return &Server{
		path: socketPath,
		httpServer: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Path returns the socket path.
func (s *Server) Path() string {
	return s.path
}

// Listen creates the socket. A stale socket file left by a crashed
// process is replaced; a live one is an error.
func (s *Server) Listen() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("localserver: create socket dir: %w", err)
	}
	if _, err := os.Stat(s.path); err == nil {
		if conn, err := net.DialTimeout("unix", s.path, time.Second); err == nil {
			conn.Close()
			return fmt.Errorf("localserver: socket %s is in use by another process", s.path)
		}
		if err := os.Remove(s.path); err != nil {
			return fmt.Errorf("localserver: remove stale socket: %w", err)
		}
	}

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("localserver: listen: %w", err)
	}
	if err := os.Chmod(s.path, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("localserver: chmod socket: %w", err)
	}
	s.listener = ln
	return nil
}

// Serve accepts connections until Shutdown. Listen must be called first.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("localserver: not listening")
	}
	s.running.Store(true)
	err := s.httpServer.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) || !s.running.Load() {
		return nil
	}
	return err
}

// ListenAndServe is Listen followed by Serve.
func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Shutdown drains active connections and removes the socket file.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)
	err := s.httpServer.Shutdown(ctx)
	if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
		err = rmErr
	}
	return err
}

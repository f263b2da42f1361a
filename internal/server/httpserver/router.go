package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/fieldstore-go/internal/server/httpserver/handler"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Handler configures the endpoint handlers.
	Handler handler.Config

	// Logger for request logging.
	Logger *slog.Logger

	// GlobalRateLimit is the rate limit per IP (requests/second).
	// Zero disables rate limiting.
	GlobalRateLimit int

	// AccessLog enables per-request logging.
	AccessLog bool
}

// DefaultRouterConfig returns the default router configuration.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		GlobalRateLimit: 50,
		AccessLog:       true,
	}
}

// NewRouter creates the ops handler wrapped in its middleware chain.
func NewRouter(cfg *RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Handler.Logger == nil {
		cfg.Handler.Logger = logger
	}

	h := handler.New(cfg.Handler)

	chain := []Middleware{Recover(logger), RequestID()}
	if cfg.GlobalRateLimit > 0 {
		chain = append(chain, RateLimit(cfg.GlobalRateLimit))
	}
	if cfg.AccessLog {
		chain = append(chain, AccessLog(logger))
	}
	return Chain(h, chain...)
}

package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yndnr/fieldstore-go/internal/core/domain"
	"github.com/yndnr/fieldstore-go/internal/core/service"
	"github.com/yndnr/fieldstore-go/internal/storage"
	"github.com/yndnr/fieldstore-go/pkg/tzclock"
)

// StatusSource is the read side of the record store the handlers inspect.
type StatusSource interface {
	Meta(ctx context.Context, family domain.Family) (domain.MetaRecord, error)
	MetaHistory(ctx context.Context, family domain.Family) ([]domain.MetaRecord, error)
	ProbePersistence() storage.PersistenceStatus
	Size() (lsm, vlog int64)
}

// SweepRunner runs expiration sweeps.
type SweepRunner interface {
	SweepExpirations(ctx context.Context, codes []int64) (*service.SweepResult, error)
}

// Config holds the handler dependencies.
type Config struct {
	Store   StatusSource
	Sweeper SweepRunner
	// Metrics serves /metrics. Optional.
	Metrics http.Handler
	Clock   *tzclock.Service
	Logger  *slog.Logger
}

// Handler is the main HTTP handler that routes requests to appropriate handlers.
type Handler struct {
	store   StatusSource
	sweeper SweepRunner
	metrics http.Handler
	clock   *tzclock.Service
	logger  *slog.Logger
	mux     *http.ServeMux
}

// New creates a new Handler.
func New(cfg Config) *Handler {
	if cfg.Clock == nil {
		cfg.Clock = tzclock.MustNew("", nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := &Handler{
		store:   cfg.Store,
		sweeper: cfg.Sweeper,
		metrics: cfg.Metrics,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		mux:     http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /healthz", h.handleHealth)
	h.mux.HandleFunc("GET /readyz", h.handleReady)
	if h.metrics != nil {
		h.mux.Handle("GET /metrics", h.metrics)
	}

	h.mux.HandleFunc("GET /v1/version", h.handleVersion)
	h.mux.HandleFunc("GET /v1/status", h.handleStatus)
	h.mux.HandleFunc("GET /v1/meta/{family}", h.handleMetaHistory)
	h.mux.HandleFunc("POST /v1/sweep", h.handleSweep)
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := getRequestID(r)
	response := NewResponse(requestID, data)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	requestID := getRequestID(r)
	response := NewErrorResponse(requestID, code, message, details)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// getRequestID returns the request ID stamped by the RequestID middleware.
func getRequestID(r *http.Request) string {
	return r.Header.Get("X-Request-ID")
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if domain.IsDomainError(err, "") {
		code := domain.GetErrorCode(err)
		status := errorCodeToHTTPStatus(code)
		if status >= http.StatusInternalServerError {
			h.logger.Error("request failed", "code", code, "error", err)
		}
		h.writeError(w, r, status, code, err.Error(), nil)
		return
	}

	h.logger.Error("internal error", "error", err)
	h.writeError(w, r, http.StatusInternalServerError, domain.ErrStorage.Code, "internal server error", nil)
}

// errorCodeToHTTPStatus maps error codes to HTTP status codes.
func errorCodeToHTTPStatus(code string) int {
	switch {
	case strings.HasSuffix(code, "-4040"), strings.HasSuffix(code, "-4041"):
		return http.StatusNotFound
	case strings.HasSuffix(code, "-4090"):
		return http.StatusConflict
	case strings.HasSuffix(code, "-4290"):
		return http.StatusTooManyRequests
	case strings.HasSuffix(code, "-4010"):
		return http.StatusUnauthorized
	case strings.Contains(code, "-4"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

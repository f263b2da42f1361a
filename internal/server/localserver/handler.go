package localserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// Control carries the agent actions reachable only over the socket.
type Control struct {
	// Reload re-reads the configuration. Optional.
	Reload func() error
	// Shutdown begins graceful shutdown. Optional.
	Shutdown func()
	Logger   *slog.Logger
}

// NewHandler mounts the control routes in front of next.
func NewHandler(next http.Handler, ctl Control) http.Handler {
	if ctl.Logger == nil {
		ctl.Logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/control/reload", func(w http.ResponseWriter, r *http.Request) {
		if ctl.Reload == nil {
			writeResult(w, http.StatusNotImplemented, "reload not supported")
			return
		}
		if err := ctl.Reload(); err != nil {
			ctl.Logger.Warn("reload via socket failed", "error", err)
			writeResult(w, http.StatusInternalServerError, err.Error())
			return
		}
		ctl.Logger.Info("configuration reloaded via socket")
		writeResult(w, http.StatusOK, "reloaded")
	})
	mux.HandleFunc("POST /v1/control/shutdown", func(w http.ResponseWriter, r *http.Request) {
		if ctl.Shutdown == nil {
			writeResult(w, http.StatusNotImplemented, "shutdown not supported")
			return
		}
		ctl.Logger.Info("shutdown requested via socket")
		writeResult(w, http.StatusAccepted, "shutting down")
		ctl.Shutdown()
	})
	mux.Handle("/", next)
	return mux
}

func writeResult(w http.ResponseWriter, status int, message string) {
	code := "OK"
	if status >= 400 {
		code = "FS-CTL-" + strconv.Itoa(status*10)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"code": code, "message": message})
}

package command

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
)

func TestAgentCommand(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]any{"status": "healthy", "time": "2024-01-13T12:00:00.000-03:00"})
	})
	server.handle("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		errorResponse(w, http.StatusServiceUnavailable, "FS-SYS-5001", "store is closed")
	})
	server.handle("GET /v1/status", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]any{"status": "running", "timezone": "America/Santiago"})
	})
	server.handle("GET /v1/meta/orders", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]any{"family": "orders", "version": 4})
	})
	var sweepBody struct {
		Codes []int64 `json:"codes"`
	}
	server.handle("POST /v1/sweep", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&sweepBody); err != nil {
			errorResponse(w, http.StatusBadRequest, "FS-ARG-4001", err.Error())
			return
		}
		jsonResponse(w, http.StatusOK, map[string]any{
			"evaluated": 2, "expired": []int64{12}, "restored": []int64{}, "version": 5,
		})
	})
	reloaded, stopped := false, false
	server.handle("POST /v1/control/reload", func(w http.ResponseWriter, r *http.Request) {
		reloaded = true
		jsonResponse(w, http.StatusOK, nil)
	})
	server.handle("POST /v1/control/shutdown", func(w http.ResponseWriter, r *http.Request) {
		stopped = true
		jsonResponse(w, http.StatusOK, nil)
	})

	tc := newTestCLI(t)
	agent := []string{"--agent", server.URL}
	run := func(args ...string) string {
		t.Helper()
		return tc.mustRun(append(agent, args...)...)
	}

	if out := run("agent", "health"); !strings.Contains(out, "Agent is healthy (2024-01-13T12:00:00.000-03:00)") {
		t.Errorf("health = %q", out)
	}
	if out := run("agent", "status"); !strings.Contains(out, "running") {
		t.Errorf("status = %q", out)
	}
	if out := run("-o", "json", "agent", "meta", "orders"); !strings.Contains(out, `"version": 4`) {
		t.Errorf("meta = %q", out)
	}

	out := run("agent", "sweep", "12", "13")
	if !strings.Contains(out, "Evaluated 2 orders, expired 12, restored none, orders version 5") {
		t.Errorf("sweep = %q", out)
	}
	if len(sweepBody.Codes) != 2 || sweepBody.Codes[0] != 12 {
		t.Errorf("sweep body = %+v", sweepBody)
	}

	if out := run("agent", "reload"); !strings.Contains(out, "Configuration reloaded") || !reloaded {
		t.Errorf("reload = %q, reloaded = %v", out, reloaded)
	}
	if out := run("agent", "stop"); !strings.Contains(out, "Agent is shutting down") || !stopped {
		t.Errorf("stop = %q, stopped = %v", out, stopped)
	}

	_, err := tc.run(append(agent, "agent", "ready")...)
	if err == nil || !strings.Contains(err.Error(), "[FS-SYS-5001] store is closed") {
		t.Errorf("ready error = %v", err)
	}
	_, err = tc.run(append(agent, "agent", "sweep", "x")...)
	if err == nil || !strings.Contains(err.Error(), `order code "x" is not a number`) {
		t.Errorf("sweep arg error = %v", err)
	}
}

func TestAgentCommand_Unreachable(t *testing.T) {
	tc := newTestCLI(t)
	sock := filepath.Join(t.TempDir(), "missing.sock")

	_, err := tc.run("--agent", "unix://"+sock, "agent", "health")
	if err == nil || !strings.Contains(err.Error(), "request failed") {
		t.Errorf("error = %v", err)
	}
}

package command

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/fieldstore-go/pkg/tzclock"
)

// Noon in the reference zone. Orders with windowInfo are due on 2024-01-08
// and expire on 2024-01-12: still open at beforeExpiry, expired at
// santiagoNoon.
var (
	beforeExpiry = time.Date(2024, 1, 10, 15, 0, 0, 0, time.UTC)
	santiagoNoon = time.Date(2024, 1, 13, 15, 0, 0, 0, time.UTC)
)

func windowInfo() map[string]any {
	return map[string]any{"F inicial": "2024-01-01", "Frec. Dias": 7}
}

// testCLI runs the application against a private data directory and CLI
// config file. Every run opens the store anew with clock.
type testCLI struct {
	t         *testing.T
	dataDir   string
	cliConfig string
	clock     tzclock.Clock
	stdin     string
}

func newTestCLI(t *testing.T) *testCLI {
	t.Helper()
	root := t.TempDir()
	return &testCLI{
		t:         t,
		dataDir:   filepath.Join(root, "data"),
		cliConfig: filepath.Join(root, "cli.yaml"),
		clock:     tzclock.NewFixedClock(beforeExpiry),
	}
}

// run executes one command line and returns its stdout.
func (tc *testCLI) run(args ...string) (string, error) {
	tc.t.Helper()
	return tc.runContext(context.Background(), args...)
}

func (tc *testCLI) runContext(ctx context.Context, args ...string) (string, error) {
	app := App()
	var out, errOut bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &errOut
	app.Reader = strings.NewReader(tc.stdin)
	app.Metadata[metaClock] = tc.clock

	argv := []string{"fieldstore-cli",
		"--cli-config", tc.cliConfig,
		"--data-dir", tc.dataDir,
		"--log-level", "error",
	}
	err := app.RunContext(ctx, append(argv, args...))
	return out.String(), err
}

// settings returns the settings resolved for the given global flags.
func (tc *testCLI) settings(args ...string) (*Settings, error) {
	app := App()
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &bytes.Buffer{}

	var got *Settings
	app.Commands = append(app.Commands, &cli.Command{
		Name: "capture",
		Action: func(c *cli.Context) error {
			got = GetSettings(c)
			return nil
		},
	})

	argv := []string{"fieldstore-cli",
		"--cli-config", tc.cliConfig,
		"--data-dir", tc.dataDir,
		"--log-level", "error",
	}
	argv = append(append(argv, args...), "capture")
	if err := app.RunContext(context.Background(), argv); err != nil {
		return nil, err
	}
	return got, nil
}

// mustRun fails the test when the command fails.
func (tc *testCLI) mustRun(args ...string) string {
	tc.t.Helper()
	out, err := tc.run(args...)
	if err != nil {
		tc.t.Fatalf("%v: %v\noutput: %s", args, err, out)
	}
	return out
}

// runJSON runs the command with JSON output and decodes it into target.
func (tc *testCLI) runJSON(target any, args ...string) {
	tc.t.Helper()
	out := tc.mustRun(append([]string{"-o", "json"}, args...)...)
	dec := json.NewDecoder(strings.NewReader(out))
	dec.UseNumber()
	if err := dec.Decode(target); err != nil {
		tc.t.Fatalf("%v: decode %q: %v", args, out, err)
	}
}

// writeFile writes a file in the test's temp dir and returns its path.
func writeFile(t *testing.T, name string, v any) string {
	t.Helper()
	var data []byte
	switch val := v.(type) {
	case string:
		data = []byte(val)
	default:
		var err error
		if data, err = json.Marshal(v); err != nil {
			t.Fatal(err)
		}
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

// mockServer creates a test HTTP server with custom handlers.
type mockServer struct {
	*httptest.Server
	handlers map[string]http.HandlerFunc
}

// newMockServer creates a new mock server.
func newMockServer() *mockServer {
	m := &mockServer{
		handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := m.handlers[r.Method+" "+r.URL.Path]; ok {
			handler(w, r)
			return
		}
		http.NotFound(w, r)
	}))
	return m
}

// handle registers a handler for "METHOD /path".
func (m *mockServer) handle(pattern string, handler http.HandlerFunc) {
	m.handlers[pattern] = handler
}

// jsonResponse writes a success envelope.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"code":    "OK",
		"message": "Success",
		"data":    data,
	})
}

// errorResponse writes an error envelope.
func errorResponse(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"code":    code,
		"message": message,
	})
}

package command

import (
	"strings"
	"testing"

	cliconfig "github.com/yndnr/fieldstore-go/internal/cli/config"
)

func TestProfileCommand_Lifecycle(t *testing.T) {
	tc := newTestCLI(t)

	out := tc.mustRun("profile", "set", "field", "--endpoint", "/run/fieldstore.sock", "--format", "yaml")
	if !strings.Contains(out, `Profile "field" saved`) {
		t.Errorf("set output = %q", out)
	}
	tc.mustRun("-o", "table", "profile", "set", "office", "--server-config", "/etc/fieldstore/server.yaml")

	cfg, err := cliconfig.Load(tc.cliConfig)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CurrentProfile != "field" {
		t.Errorf("CurrentProfile = %q, want field", cfg.CurrentProfile)
	}
	if p := cfg.Profiles["field"]; p.Agent != "/run/fieldstore.sock" || p.Output != "yaml" {
		t.Errorf("field profile = %+v", p)
	}

	out = tc.mustRun("-o", "table", "profile", "list")
	for _, want := range []string{"CURRENT", "field", "office", "*"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q: %q", want, out)
		}
	}

	var shown map[string]any
	tc.runJSON(&shown, "profile", "show")
	if shown["profile"] != "field" || shown["agent"] != "/run/fieldstore.sock" || shown["output"] != "json" {
		t.Errorf("show = %v", shown)
	}

	out = tc.mustRun("-o", "table", "profile", "use", "office")
	if !strings.Contains(out, `Using profile "office"`) {
		t.Errorf("use output = %q", out)
	}
	tc.mustRun("profile", "delete", "office")

	cfg, err = cliconfig.Load(tc.cliConfig)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CurrentProfile != "" || len(cfg.Profiles) != 1 {
		t.Errorf("after delete = %+v", cfg)
	}
}

func TestProfileCommand_Errors(t *testing.T) {
	tc := newTestCLI(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"set without name", []string{"profile", "set"}, "profile name required"},
		{"bad format", []string{"profile", "set", "x", "--format", "xml"}, "xml"},
		{"use unknown", []string{"profile", "use", "nope"}, `profile "nope" not found`},
		{"delete unknown", []string{"profile", "rm", "nope"}, `profile "nope" not found`},
		{"show unknown", []string{"profile", "show", "nope"}, `profile "nope" not found`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tc.run(tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

package command

import (
	"context"
	"log/slog"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/fieldstore-go/internal/cli/repl"
)

// ShellCommand returns the interactive shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Interactive shell keeping the store open between commands",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "history", Usage: "history file (default ~/.fieldstore/history)"},
		},
		Action: shellAction,
	}
}

func shellAction(c *cli.Context) error {
	app := c.App
	globals := globalArgs(c)

	history := repl.NewHistory()
	if path := c.String("history"); path != "" {
		history = repl.NewHistoryFile(path, 1000)
	}
	if err := history.Load(); err != nil {
		slog.Warn("load shell history failed", "error", err)
	}

	app.Metadata[metaKeepEnv] = true
	defer func() {
		app.Metadata[metaKeepEnv] = false
		if err := closeEnv(app); err != nil {
			slog.Warn("close store failed", "error", err)
		}
		if err := history.Save(); err != nil {
			slog.Warn("save shell history failed", "error", err)
		}
	}()

	r := repl.New(repl.Config{
		In:       app.Reader,
		Out:      stdout(c),
		Commands: commandPaths(app.Commands, ""),
		History:  history,
		Exec: func(ctx context.Context, args []string) error {
			argv := append([]string{app.Name}, globals...)
			return app.RunContext(ctx, append(argv, args...))
		},
	})
	return r.Run(c.Context)
}

// globalArgs re-encodes the resolved global options for nested runs.
func globalArgs(c *cli.Context) []string {
	s := GetSettings(c)
	var args []string
	add := func(name, v string) {
		if v != "" {
			args = append(args, "--"+name, v)
		}
	}
	add("cli-config", s.CLIConfig)
	add("profile", s.ProfileName)
	add("config", s.Config)
	add("data-dir", s.DataDir)
	add("agent", s.Agent)
	add("output", s.Output)
	add("log-level", c.String("log-level"))
	if s.Wide {
		args = append(args, "--wide")
	}
	if s.NoHeaders {
		args = append(args, "--no-headers")
	}
	return args
}

// commandPaths lists every command path below cmds, skipping the shell.
func commandPaths(cmds []*cli.Command, prefix string) []string {
	var out []string
	for _, cmd := range cmds {
		if cmd.Name == "shell" || cmd.Hidden {
			continue
		}
		for _, name := range append([]string{cmd.Name}, cmd.Aliases...) {
			path := strings.TrimSpace(prefix + " " + name)
			out = append(out, path)
			out = append(out, commandPaths(cmd.Subcommands, path)...)
		}
	}
	return out
}

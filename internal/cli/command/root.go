package command

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	cliconfig "github.com/yndnr/fieldstore-go/internal/cli/config"
	"github.com/yndnr/fieldstore-go/internal/cli/output"
	"github.com/yndnr/fieldstore-go/internal/infra/buildinfo"
	"github.com/yndnr/fieldstore-go/internal/telemetry/logger"
	"github.com/yndnr/fieldstore-go/pkg/tzclock"
)

// Metadata keys on cli.App.
const (
	metaSettings = "settings"
	metaEnv      = "env"
	metaKeepEnv  = "keepEnv"
	metaClock    = "clock"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:                 "fieldstore-cli",
		Usage:                "fieldstore command-line management tool",
		Version:              buildinfo.String(),
		Flags:                globalFlags(),
		EnableBashCompletion: true,
		Commands:             commands(),
		Metadata:             map[string]any{},
		Before:               before,
		After:                after,
	}
}

func commands() []*cli.Command {
	return []*cli.Command{
		UserCommand(),
		OrderCommand(),
		SnapshotCommand(),
		BackupCommand(),
		MetaCommand(),
		BootstrapCommand(),
		WatchCommand(),
		AgentCommand(),
		ProfileCommand(),
		ShellCommand(),
		VersionCommand(),
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "server configuration file (env FIELDSTORE_CONFIG)",
		},
		&cli.StringFlag{
			Name:  "data-dir",
			Usage: "override storage.data_dir (env FIELDSTORE_DATA_DIR)",
		},
		&cli.StringFlag{
			Name:    "agent",
			Aliases: []string{"a"},
			Usage:   "running agent: socket path, unix:// URL or host:port (env FIELDSTORE_AGENT)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format: table, json, yaml (env FIELDSTORE_OUTPUT)",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "show wide output (more columns)",
		},
		&cli.BoolFlag{
			Name:  "no-headers",
			Usage: "omit table headers",
		},
		&cli.StringFlag{
			Name:    "profile",
			Aliases: []string{"p"},
			Usage:   "profile from the CLI config file",
		},
		&cli.StringFlag{
			Name:    "cli-config",
			Usage:   "CLI config file",
			EnvVars: []string{"FIELDSTORE_CLI_CONFIG"},
			Value:   cliconfig.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "log level: debug, info, warn, error",
			Value: "warn",
		},
	}
}

// Settings are the resolved global options of one invocation.
type Settings struct {
	cliconfig.Profile

	ProfileName string
	CLIConfig   string
	Wide        bool
	NoHeaders   bool
}

func (s *Settings) envKey() string {
	return s.Config + "\x00" + s.DataDir
}

// ParseSettings resolves the profile, environment and flags of c.
func ParseSettings(c *cli.Context) (*Settings, error) {
	path := c.String("cli-config")
	cfg, err := cliconfig.Load(path)
	if err != nil {
		return nil, err
	}

	name := c.String("profile")
	p, ok := cfg.Resolve(name)
	if !ok {
		return nil, fmt.Errorf("profile %q not found in %s", name, path)
	}
	p = cliconfig.Merge(p, cliconfig.Environ(), map[string]string{
		"config":   c.String("config"),
		"data-dir": c.String("data-dir"),
		"agent":    c.String("agent"),
		"output":   c.String("output"),
	})
	format, err := output.ParseFormat(p.Output)
	if err != nil {
		return nil, err
	}
	p.Output = string(format)

	if name == "" {
		name = cfg.CurrentProfile
	}
	return &Settings{
		Profile:     p,
		ProfileName: name,
		CLIConfig:   path,
		Wide:        c.Bool("wide"),
		NoHeaders:   c.Bool("no-headers"),
	}, nil
}

func before(c *cli.Context) error {
	level := c.String("log-level")
	if !logger.ValidLevel(level) {
		return fmt.Errorf("invalid log level %q", level)
	}
	if _, err := logger.Setup(logger.Config{Level: level, Format: "text", Output: c.App.ErrWriter, Process: "fieldstore-cli"}); err != nil {
		return err
	}

	s, err := ParseSettings(c)
	if err != nil {
		return err
	}
	c.App.Metadata[metaSettings] = s
	return nil
}

func after(c *cli.Context) error {
	if keep, _ := c.App.Metadata[metaKeepEnv].(bool); keep {
		return nil
	}
	return closeEnv(c.App)
}

func closeEnv(app *cli.App) error {
	env, ok := app.Metadata[metaEnv].(*Env)
	if !ok {
		return nil
	}
	delete(app.Metadata, metaEnv)
	return env.Close()
}

// GetSettings returns the settings resolved for c.
func GetSettings(c *cli.Context) *Settings {
	if s, ok := c.App.Metadata[metaSettings].(*Settings); ok {
		return s
	}
	return &Settings{Profile: cliconfig.Profile{Output: string(output.FormatTable)}}
}

// EnsureEnv opens the store on first use and reuses it for the rest of
// the invocation (or shell session).
func EnsureEnv(c *cli.Context) (*Env, error) {
	s := GetSettings(c)
	if env, ok := c.App.Metadata[metaEnv].(*Env); ok {
		if env.key == s.envKey() {
			return env, nil
		}
		if err := closeEnv(c.App); err != nil {
			return nil, err
		}
	}

	clock, _ := c.App.Metadata[metaClock].(tzclock.Clock)
	env, err := OpenEnv(s, clock, slog.Default())
	if err != nil {
		return nil, err
	}
	c.App.Metadata[metaEnv] = env
	return env, nil
}

// Print renders v in the selected output format.
func Print(c *cli.Context, v any) error {
	s := GetSettings(c)
	format, err := output.ParseFormat(s.Output)
	if err != nil {
		return err
	}
	f := output.NewFormatter(format, s.Wide)
	if tf, ok := f.(*output.TableFormatter); ok {
		tf.NoHeaders = s.NoHeaders
	}
	return f.Format(stdout(c), v)
}

// Printf writes a human message unless a machine format is selected.
func Printf(c *cli.Context, format string, args ...any) {
	if GetSettings(c).Output != string(output.FormatTable) {
		return
	}
	fmt.Fprintf(stdout(c), format, args...)
}

func stdout(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

// readInput reads a file argument; "-" reads stdin.
func readInput(c *cli.Context, path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("input file required")
	}
	if path == "-" {
		r := c.App.Reader
		if r == nil {
			r = os.Stdin
		}
		return io.ReadAll(r)
	}
	return os.ReadFile(path)
}

// writeOutput writes data to path, or to stdout when path is empty or "-".
func writeOutput(c *cli.Context, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := stdout(c).Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return err
	}
	Printf(c, "Wrote %s\n", path)
	return nil
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+strings.TrimRight(format, "\n")+"\n", args...)
}

// PrintTable renders t in table mode and data in the structured formats.
func PrintTable(c *cli.Context, data any, t *output.Table) error {
	if GetSettings(c).Output == string(output.FormatTable) {
		return Print(c, t)
	}
	return Print(c, data)
}

// argInt64 parses the positional argument at i as an integer code.
func argInt64(c *cli.Context, i int, name string) (int64, error) {
	raw := c.Args().Get(i)
	if raw == "" {
		return 0, fmt.Errorf("%s required", name)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not a number", name, raw)
	}
	return n, nil
}

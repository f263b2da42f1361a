package command

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/fieldstore-go/internal/cli/connection"
	"github.com/yndnr/fieldstore-go/internal/cli/output"
	"github.com/yndnr/fieldstore-go/internal/core/service"
)

// AgentCommand returns the agent subcommand group. Its commands talk to
// a running fieldstore-server, which holds the store lock.
func AgentCommand() *cli.Command {
	return &cli.Command{
		Name:  "agent",
		Usage: "Manage a running fieldstore-server",
		Subcommands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show versions, persistence and storage of the agent",
				Action: agentStatus,
			},
			{
				Name:   "health",
				Usage:  "Check agent liveness",
				Action: agentHealth,
			},
			{
				Name:   "ready",
				Usage:  "Check agent readiness",
				Action: agentReady,
			},
			{
				Name:      "sweep",
				Usage:     "Run an expiration sweep in the agent",
				ArgsUsage: "[CODE...]",
				Action:    agentSweep,
			},
			{
				Name:      "meta",
				Usage:     "Show a family's version history from the agent",
				ArgsUsage: "users|orders",
				Action:    agentMeta,
			},
			{
				Name:   "reload",
				Usage:  "Reload the agent configuration (socket only)",
				Action: agentReload,
			},
			{
				Name:   "stop",
				Usage:  "Stop the agent (socket only)",
				Action: agentStop,
			},
		},
	}
}

// EnsureAgent returns a client for the selected agent. Without an
// explicit target it uses the socket, then the ops address, of the
// server configuration.
func EnsureAgent(c *cli.Context) (*connection.HTTPClient, error) {
	s := GetSettings(c)
	if s.Agent != "" {
		return connection.Open(s.Agent), nil
	}

	cfg, err := LoadServerConfig(s)
	if err != nil {
		return nil, err
	}
	if path := cfg.SocketPath(); path != "" {
		return connection.NewSocketClient(path), nil
	}
	if cfg.Server.HTTP.Addr != "" {
		return connection.NewHTTPClient(cfg.Server.HTTP.Addr), nil
	}
	return nil, fmt.Errorf("no agent endpoint configured, use --agent")
}

func agentGet(c *cli.Context, path string, target any) error {
	client, err := EnsureAgent(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Context, 30*time.Second)
	defer cancel()

	resp, err := client.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return connection.ParseResponse(resp, target)
}

func agentPost(c *cli.Context, path string, body, target any) error {
	client, err := EnsureAgent(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Context, 60*time.Second)
	defer cancel()

	resp, err := client.Post(ctx, path, body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return connection.ParseResponse(resp, target)
}

func agentStatus(c *cli.Context) error {
	var result map[string]any
	if err := agentGet(c, "/v1/status", &result); err != nil {
		return err
	}
	return Print(c, result)
}

func agentHealth(c *cli.Context) error {
	var result struct {
		Status string `json:"status"`
		Time   string `json:"time"`
	}
	if err := agentGet(c, "/healthz", &result); err != nil {
		return err
	}
	if GetSettings(c).Output != string(output.FormatTable) {
		return Print(c, result)
	}
	Printf(c, "Agent is %s (%s)\n", result.Status, result.Time)
	return nil
}

func agentReady(c *cli.Context) error {
	var result map[string]any
	if err := agentGet(c, "/readyz", &result); err != nil {
		return err
	}
	return Print(c, result)
}

func agentSweep(c *cli.Context) error {
	var codes []int64
	for i := 0; i < c.Args().Len(); i++ {
		code, err := argInt64(c, i, "order code")
		if err != nil {
			return err
		}
		codes = append(codes, code)
	}

	var result service.SweepResult
	if err := agentPost(c, "/v1/sweep", map[string]any{"codes": codes}, &result); err != nil {
		return err
	}
	return printSweep(c, &result)
}

func agentMeta(c *cli.Context) error {
	family, err := snapshotFamily(c)
	if err != nil {
		return err
	}
	var result map[string]any
	if err := agentGet(c, "/v1/meta/"+string(family), &result); err != nil {
		return err
	}
	return Print(c, result)
}

func agentReload(c *cli.Context) error {
	if err := agentPost(c, "/v1/control/reload", nil, nil); err != nil {
		return err
	}
	Printf(c, "Configuration reloaded\n")
	return nil
}

func agentStop(c *cli.Context) error {
	if err := agentPost(c, "/v1/control/shutdown", nil, nil); err != nil {
		return err
	}
	Printf(c, "Agent is shutting down\n")
	return nil
}

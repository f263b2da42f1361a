package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/fieldstore-go/internal/cli/output"
	"github.com/yndnr/fieldstore-go/internal/notify"
)

// WatchCommand returns the watch command. It follows the broadcast
// channel, so it runs alongside an agent.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Print change events published by any process sharing the data directory",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "family", Usage: "only users or orders events"},
			&cli.IntFlag{Name: "count", Usage: "exit after N events"},
		},
		Action: watchAction,
	}
}

func watchAction(c *cli.Context) error {
	cfg, err := LoadServerConfig(GetSettings(c))
	if err != nil {
		return err
	}
	dir := cfg.BroadcastDir()
	if !cfg.Notify.Enabled || dir == "" {
		return fmt.Errorf("change broadcast is disabled (notify.enabled)")
	}

	ch, err := notify.NewDirChannel(notify.DirConfig{
		Dir:        dir,
		KeepEvents: cfg.Notify.KeepEvents,
		Logger:     slog.Default().With("component", "notify"),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	family := c.String("family")
	limit := c.Int("count")
	seen := 0
	table := GetSettings(c).Output == string(output.FormatTable)

	var printErr error
	err = ch.Listen(ctx, func(e notify.Event) {
		if family != "" && string(e.Family) != family {
			return
		}
		if table {
			fmt.Fprintf(stdout(c), "%s  %-15s  %s  (%s)\n", e.Timestamp, e.Name, e.Reason, e.Origin)
		} else if err := Print(c, e); err != nil {
			printErr = err
			cancel()
			return
		}
		seen++
		if limit > 0 && seen >= limit {
			cancel()
		}
	})
	if err != nil {
		return err
	}
	return printErr
}

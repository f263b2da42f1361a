package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/yndnr/fieldstore-go/internal/infra/buildinfo"
	"github.com/yndnr/fieldstore-go/internal/server/agent"
	"github.com/yndnr/fieldstore-go/internal/server/config"
	"github.com/yndnr/fieldstore-go/internal/telemetry/logger"
	"github.com/yndnr/fieldstore-go/pkg/tzclock"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("fieldstore-server %s\n", buildinfo.String())
		return nil
	}

	cfg, err := config.Load(*configFile, nil)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Verify(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	clock, err := tzclock.New(cfg.Clock.Timezone, nil)
	if err != nil {
		return err
	}
	log, err := logger.Setup(logger.Config{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Output:   os.Stderr,
		Location: clock.Location(),
		Process:  "fieldstore-server",
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	a, err := agent.New(cfg, agent.Options{
		ConfigPath: *configFile,
		Logger:     log,
	})
	if err != nil {
		return err
	}

	// Run waits for SIGINT/SIGTERM or a shutdown request on the socket.
	return a.Run(context.Background())
}

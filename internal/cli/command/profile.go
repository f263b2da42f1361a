package command

import (
	"fmt"
	"sort"

	"github.com/urfave/cli/v2"

	cliconfig "github.com/yndnr/fieldstore-go/internal/cli/config"
	"github.com/yndnr/fieldstore-go/internal/cli/output"
)

// ProfileCommand returns the profile subcommand group managing the CLI
// config file.
func ProfileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "CLI profiles (server config, data dir, agent, output)",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List saved profiles",
				Action: profileList,
			},
			{
				Name:      "show",
				Usage:     "Show the effective settings, or a saved profile",
				ArgsUsage: "[NAME]",
				Action:    profileShow,
			},
			{
				Name:      "set",
				Usage:     "Create or change a profile",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "server-config", Usage: "server configuration file"},
					&cli.StringFlag{Name: "dir", Usage: "data directory override"},
					&cli.StringFlag{Name: "endpoint", Usage: "agent socket path, unix:// URL or host:port"},
					&cli.StringFlag{Name: "format", Usage: "output format"},
				},
				Action: profileSet,
			},
			{
				Name:      "use",
				Usage:     "Make a profile the current one",
				ArgsUsage: "NAME",
				Action:    profileUse,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a profile",
				ArgsUsage: "NAME",
				Action:    profileDelete,
			},
		},
	}
}

func loadCLIConfig(c *cli.Context) (*cliconfig.CLIConfig, string, error) {
	path := GetSettings(c).CLIConfig
	cfg, err := cliconfig.Load(path)
	return cfg, path, err
}

func profileList(c *cli.Context) error {
	cfg, _, err := loadCLIConfig(c)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(cfg.Profiles))
	for name := range cfg.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	t := &output.Table{}
	t.SetHeaders("CURRENT", "NAME", "CONFIG", "AGENT", "OUTPUT", "DATA_DIR+")
	records := make([]map[string]any, 0, len(names))
	for _, name := range names {
		p := cfg.Profiles[name]
		current := ""
		if name == cfg.CurrentProfile {
			current = "*"
		}
		t.AddRow(current, name, p.Config, p.Agent, p.Output, p.DataDir)
		records = append(records, map[string]any{
			"name":    name,
			"current": name == cfg.CurrentProfile,
			"profile": p,
		})
	}
	return PrintTable(c, records, t)
}

func profileShow(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		s := GetSettings(c)
		return Print(c, map[string]any{
			"profile":    s.ProfileName,
			"cli_config": s.CLIConfig,
			"config":     s.Config,
			"data_dir":   s.DataDir,
			"agent":      s.Agent,
			"output":     s.Output,
		})
	}

	cfg, path, err := loadCLIConfig(c)
	if err != nil {
		return err
	}
	p, ok := cfg.Profiles[name]
	if !ok {
		return fmt.Errorf("profile %q not found in %s", name, path)
	}
	return Print(c, p)
}

func profileSet(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("profile name required")
	}
	if c.IsSet("format") {
		if _, err := output.ParseFormat(c.String("format")); err != nil {
			return err
		}
	}

	cfg, path, err := loadCLIConfig(c)
	if err != nil {
		return err
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]cliconfig.Profile)
	}
	p := cfg.Profiles[name]
	p = cliconfig.Merge(p, nil, map[string]string{
		"config":   c.String("server-config"),
		"data-dir": c.String("dir"),
		"agent":    c.String("endpoint"),
		"output":   c.String("format"),
	})
	cfg.Profiles[name] = p
	if cfg.CurrentProfile == "" {
		cfg.CurrentProfile = name
	}
	if err := cliconfig.Save(cfg, path); err != nil {
		return err
	}
	Printf(c, "Profile %q saved to %s\n", name, path)
	return nil
}

func profileUse(c *cli.Context) error {
	name := c.Args().First()
	cfg, path, err := loadCLIConfig(c)
	if err != nil {
		return err
	}
	if _, ok := cfg.Profiles[name]; !ok {
		return fmt.Errorf("profile %q not found in %s", name, path)
	}
	cfg.CurrentProfile = name
	if err := cliconfig.Save(cfg, path); err != nil {
		return err
	}
	Printf(c, "Using profile %q\n", name)
	return nil
}

func profileDelete(c *cli.Context) error {
	name := c.Args().First()
	cfg, path, err := loadCLIConfig(c)
	if err != nil {
		return err
	}
	if _, ok := cfg.Profiles[name]; !ok {
		return fmt.Errorf("profile %q not found in %s", name, path)
	}
	delete(cfg.Profiles, name)
	if cfg.CurrentProfile == name {
		cfg.CurrentProfile = ""
	}
	if err := cliconfig.Save(cfg, path); err != nil {
		return err
	}
	Printf(c, "Profile %q deleted\n", name)
	return nil
}

package command

import (
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/fieldstore-go/internal/cli/output"
	"github.com/yndnr/fieldstore-go/internal/core/domain"
)

// MetaCommand returns the meta subcommand group.
func MetaCommand() *cli.Command {
	return &cli.Command{
		Name:  "meta",
		Usage: "Family versions and change logs",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the current version of each family",
				Action: metaShow,
			},
			{
				Name:      "history",
				Usage:     "Show the version history of a family",
				ArgsUsage: "users|orders",
				Action:    metaHistory,
			},
		},
	}
}

// FamilyVersion is one row of meta show.
type FamilyVersion struct {
	Family     domain.Family `json:"family"`
	Version    uint64        `json:"version"`
	LastChange string        `json:"lastChange,omitempty"`
}

func metaShow(c *cli.Context) error {
	env, err := EnsureEnv(c)
	if err != nil {
		return err
	}

	var rows []FamilyVersion
	t := &output.Table{}
	t.SetHeaders("FAMILY", "VERSION", "LAST_CHANGE")
	for _, f := range []domain.Family{domain.FamilyUsers, domain.FamilyOrders} {
		m, err := env.Store.Meta(c.Context, f)
		if err != nil {
			return err
		}
		row := FamilyVersion{Family: f, Version: m.Version}
		if n := len(m.ChangeLog); n > 0 {
			row.LastChange = m.ChangeLog[n-1]
		}
		rows = append(rows, row)
		t.AddRow(string(f), strconv.FormatUint(m.Version, 10), row.LastChange)
	}
	return PrintTable(c, rows, t)
}

func metaHistory(c *cli.Context) error {
	family, err := snapshotFamily(c)
	if err != nil {
		return err
	}
	env, err := EnsureEnv(c)
	if err != nil {
		return err
	}
	history, err := env.Store.MetaHistory(c.Context, family)
	if err != nil {
		return err
	}

	t := &output.Table{}
	t.SetHeaders("VERSION", "CHANGES")
	for _, r := range history {
		t.AddRow(strconv.FormatUint(r.Version, 10), strings.Join(r.ChangeLog, "; "))
	}
	if history == nil {
		history = []domain.MetaRecord{}
	}
	return PrintTable(c, history, t)
}

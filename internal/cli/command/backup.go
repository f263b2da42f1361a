package command

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/fieldstore-go/internal/cli/output"
	"github.com/yndnr/fieldstore-go/internal/core/service"
	"github.com/yndnr/fieldstore-go/pkg/crypto/seal"
)

// backupLabel binds sealed backups to their purpose.
const backupLabel = "fieldstore-backup"

func passphraseFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "passphrase",
		Usage:   "seal (export) or open (import) the backup with this passphrase",
		EnvVars: []string{"FIELDSTORE_BACKUP_PASSPHRASE"},
	}
}

// BackupCommand returns the backup subcommand group.
func BackupCommand() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Full backup export and restore",
		Subcommands: []*cli.Command{
			{
				Name:  "export",
				Usage: "Export tables and meta history",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "scope", Usage: "all, users or orders", Value: "all"},
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "write to FILE instead of stdout"},
					passphraseFlag(),
				},
				Action: backupExport,
			},
			{
				Name:      "import",
				Usage:     "Replace the tables carried by a backup",
				ArgsUsage: "FILE|-",
				Flags:     []cli.Flag{passphraseFlag()},
				Action:    backupImport,
			},
		},
	}
}

func backupExport(c *cli.Context) error {
	scope, err := service.ParseBackupScope(c.String("scope"))
	if err != nil {
		return err
	}
	env, err := EnsureEnv(c)
	if err != nil {
		return err
	}
	backup, err := env.Backup.ExportBackup(c.Context, scope)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		return err
	}
	if pass := c.String("passphrase"); pass != "" {
		if data, err = seal.Seal(data, []byte(pass), backupLabel); err != nil {
			return err
		}
	}
	return writeOutput(c, c.String("file"), data)
}

func backupImport(c *cli.Context) error {
	data, err := readInput(c, c.Args().First())
	if err != nil {
		return err
	}
	if seal.IsSealed(data) {
		pass := c.String("passphrase")
		if pass == "" {
			return errors.New("backup is sealed, pass --passphrase or set FIELDSTORE_BACKUP_PASSPHRASE")
		}
		if data, err = seal.Open(data, []byte(pass), backupLabel); err != nil {
			return fmt.Errorf("open sealed backup: %w", err)
		}
	}
	env, err := EnsureEnv(c)
	if err != nil {
		return err
	}
	result, err := env.Backup.ImportBackup(c.Context, data)
	if err != nil {
		return err
	}
	if GetSettings(c).Output != string(output.FormatTable) {
		return Print(c, result)
	}
	Printf(c, "Backup restored (%s): %d users, %d orders\n",
		result.Scope, result.Restored.Users, result.Restored.Orders)
	return nil
}

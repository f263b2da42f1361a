package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/fieldstore-go/internal/cli/output"
	"github.com/yndnr/fieldstore-go/internal/core/service"
)

// BootstrapCommand returns the bootstrap command.
func BootstrapCommand() *cli.Command {
	return &cli.Command{
		Name:  "bootstrap",
		Usage: "Create the configured administrator unless it exists",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "override bootstrap.admin_name"},
			&cli.StringFlag{Name: "password", Usage: "override bootstrap.admin_password"},
			&cli.StringFlag{Name: "code", Usage: "override bootstrap.admin_code"},
		},
		Action: bootstrapAction,
	}
}

func bootstrapAction(c *cli.Context) error {
	env, err := EnsureEnv(c)
	if err != nil {
		return err
	}

	b := env.Config.Bootstrap
	if c.IsSet("name") {
		b.AdminName = c.String("name")
	}
	if c.IsSet("password") {
		b.AdminPassword = c.String("password")
	}
	if c.IsSet("code") {
		b.AdminCode = c.String("code")
	}
	if !b.IsSet() {
		return fmt.Errorf("no bootstrap administrator configured (set FIELDSTORE_BOOTSTRAP_ADMIN_NAME, _PASSWORD and _CODE)")
	}

	created, err := env.Users.EnsureAdmin(c.Context, service.BootstrapAdmin{
		Name:     b.AdminName,
		Password: b.AdminPassword,
		Code:     b.AdminCode,
	})
	if err != nil {
		return err
	}
	if created {
		Printf(c, "Administrator %s created\n", b.AdminCode)
	} else {
		Printf(c, "Administrator %s already exists\n", b.AdminCode)
	}
	if GetSettings(c).Output != string(output.FormatTable) {
		return Print(c, map[string]any{"code": b.AdminCode, "created": created})
	}
	return nil
}

package command

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/fieldstore-go/internal/cli/output"
	"github.com/yndnr/fieldstore-go/internal/core/domain"
	"github.com/yndnr/fieldstore-go/internal/core/service"
)

// UserCommand returns the user subcommand group.
func UserCommand() *cli.Command {
	return &cli.Command{
		Name:    "user",
		Aliases: []string{"users"},
		Usage:   "Personnel management",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List users",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "role", Usage: "filter by role"},
					&cli.Int64Flag{Name: "speciality", Usage: "filter by speciality id"},
					&cli.BoolFlag{Name: "active", Usage: "only active users"},
				},
				Action: userList,
			},
			{
				Name:      "get",
				Usage:     "Show a user",
				ArgsUsage: "CODE",
				Action:    userGet,
			},
			{
				Name:  "add",
				Usage: "Create a user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "code", Usage: "numeric user code", Required: true},
					&cli.StringFlag{Name: "name", Usage: "display name", Required: true},
					&cli.StringFlag{Name: "role", Usage: "admin, supervisor or mantenedor", Required: true},
					&cli.StringFlag{Name: "speciality", Usage: "speciality id (supervisor, mantenedor)"},
					&cli.BoolFlag{Name: "inactive", Usage: "create the user inactive"},
					&cli.StringFlag{Name: "password", Usage: "login password"},
					&cli.StringFlag{Name: "signature", Usage: "signature image reference"},
				},
				Action: userAdd,
			},
			{
				Name:      "update",
				Usage:     "Change user fields",
				ArgsUsage: "CODE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "display name"},
					&cli.StringFlag{Name: "role", Usage: "admin, supervisor or mantenedor"},
					&cli.Int64Flag{Name: "speciality", Usage: "speciality id"},
					&cli.BoolFlag{Name: "clear-speciality", Usage: "remove the speciality"},
					&cli.BoolFlag{Name: "active", Usage: "set active (use --active=false to deactivate)"},
					&cli.StringFlag{Name: "password", Usage: "new login password"},
					&cli.StringFlag{Name: "signature", Usage: "signature image reference"},
				},
				Action: userUpdate,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a user",
				ArgsUsage: "CODE",
				Action:    userDelete,
			},
			{
				Name:      "auth",
				Usage:     "Check a user's password",
				ArgsUsage: "CODE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "password", Usage: "password to check", Required: true},
				},
				Action: userAuth,
			},
		},
	}
}

func userList(c *cli.Context) error {
	env, err := EnsureEnv(c)
	if err != nil {
		return err
	}
	users, err := env.Users.ListUsers(c.Context)
	if err != nil {
		return err
	}

	filtered := make([]*domain.User, 0, len(users))
	for _, u := range users {
		if c.IsSet("role") && string(u.Role) != c.String("role") {
			continue
		}
		if c.IsSet("speciality") && (u.Speciality == nil || *u.Speciality != c.Int64("speciality")) {
			continue
		}
		if c.Bool("active") && !u.Active {
			continue
		}
		filtered = append(filtered, publicUser(u))
	}
	return PrintTable(c, filtered, usersTable(filtered))
}

func userGet(c *cli.Context) error {
	code, err := argInt64(c, 0, "user code")
	if err != nil {
		return err
	}
	env, err := EnsureEnv(c)
	if err != nil {
		return err
	}
	u, err := env.Users.GetUser(c.Context, code)
	if err != nil {
		return err
	}
	return Print(c, publicUser(u))
}

func userAdd(c *cli.Context) error {
	env, err := EnsureEnv(c)
	if err != nil {
		return err
	}

	active := !c.Bool("inactive")
	req := &service.AddUserRequest{
		Code:      c.String("code"),
		Name:      c.String("name"),
		Role:      c.String("role"),
		Active:    &active,
		Password:  c.String("password"),
		Signature: c.String("signature"),
	}
	if c.IsSet("speciality") {
		req.Speciality = c.String("speciality")
	}

	u, err := env.Users.AddUser(c.Context, req)
	if err != nil {
		return err
	}
	Printf(c, "User %d created\n", u.Code)
	return Print(c, publicUser(u))
}

func userUpdate(c *cli.Context) error {
	code, err := argInt64(c, 0, "user code")
	if err != nil {
		return err
	}

	patch := &service.UserPatch{ClearSpeciality: c.Bool("clear-speciality")}
	if c.IsSet("name") {
		v := c.String("name")
		patch.Name = &v
	}
	if c.IsSet("role") {
		v := c.String("role")
		patch.Role = &v
	}
	if c.IsSet("speciality") {
		v := c.Int64("speciality")
		patch.Speciality = &v
	}
	if c.IsSet("active") {
		v := c.Bool("active")
		patch.Active = &v
	}
	if c.IsSet("password") {
		v := c.String("password")
		patch.Password = &v
	}
	if c.IsSet("signature") {
		v := c.String("signature")
		patch.Signature = &v
	}

	env, err := EnsureEnv(c)
	if err != nil {
		return err
	}
	u, err := env.Users.UpdateUser(c.Context, code, patch)
	if err != nil {
		return err
	}
	Printf(c, "User %d updated\n", u.Code)
	return Print(c, publicUser(u))
}

func userDelete(c *cli.Context) error {
	code, err := argInt64(c, 0, "user code")
	if err != nil {
		return err
	}
	env, err := EnsureEnv(c)
	if err != nil {
		return err
	}
	if err := env.Users.DeleteUser(c.Context, code); err != nil {
		return err
	}
	Printf(c, "User %d deleted\n", code)
	return nil
}

func userAuth(c *cli.Context) error {
	code, err := argInt64(c, 0, "user code")
	if err != nil {
		return err
	}
	env, err := EnsureEnv(c)
	if err != nil {
		return err
	}
	u, err := env.Auth.Authenticate(c.Context, code, c.String("password"))
	if err != nil {
		return err
	}
	Printf(c, "Authenticated %d (%s, %s)\n", u.Code, u.Name, u.Role)
	return Print(c, publicUser(u))
}

// publicUser returns a copy without the password hash.
func publicUser(u *domain.User) *domain.User {
	c := u.Clone()
	c.PasswordHash = ""
	return c
}

func usersTable(users []*domain.User) *output.Table {
	t := &output.Table{}
	t.SetHeaders("CODE", "NAME", "ROLE", "SPECIALITY", "ACTIVE", "SIGNATURE+", "UPDATED+")
	for _, u := range users {
		speciality := ""
		if u.Speciality != nil {
			speciality = strconv.FormatInt(*u.Speciality, 10)
		}
		t.AddRow(
			strconv.FormatInt(u.Code, 10),
			u.Name,
			string(u.Role),
			speciality,
			fmt.Sprint(u.Active),
			u.Signature,
			u.UpdatedAt,
		)
	}
	return t
}

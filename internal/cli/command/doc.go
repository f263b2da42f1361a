// Package command provides CLI command definitions for fieldstore-cli.
//
// It uses urfave/cli/v2 for command parsing and supports both
// single-command mode and the interactive shell. Store commands open the
// data directory directly; agent commands talk to a running
// fieldstore-server over its socket or ops address.
package command

// Package main provides the entry point for fieldstore-cli.
//
// fieldstore-cli manages a field device's store. Commands open the data
// directory directly when no agent holds it; the agent subcommands talk
// to a running fieldstore-server over its socket. The shell subcommand
// keeps one store open across commands.
package main

// Package config provides the fieldstore-cli profile file.
//
// The profile file (~/.fieldstore/cli.yaml) stores named profiles. Each
// profile points the CLI at a server configuration file, a data
// directory override and a running agent, plus an output preference.
// Flags and FIELDSTORE_* environment variables override the selected
// profile through Merge.
package config

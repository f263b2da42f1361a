// Package repl provides the interactive shell of fieldstore-cli.
//
// The shell keeps one store handle open across commands, which matters
// because the store holds an exclusive lock on its data directory:
//
//   - repl.go: read loop, line splitting and dispatch to an Exec func
//   - completer.go: command suggestions built from the command tree
//   - history.go: command history persisted under ~/.fieldstore
package repl

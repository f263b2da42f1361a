// Package tlsroots serves the agent's ops endpoint over TLS.
//
//   - roots.go: client CA pools for mutual TLS and the server tls.Config
//   - watcher.go: key pair hot reload via fsnotify
//
// Field devices rotate certificates by dropping new files in place; the
// watcher picks them up without restarting the agent.
package tlsroots

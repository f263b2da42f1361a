// Package connection is the fieldstore-cli client for a running agent.
//
//   - http.go: JSON client over TCP and response envelope decoding
//   - socket.go: the same client over the agent's Unix socket
//
// The CLI uses it only for the agent commands; every other command works
// on the store directly.
package connection

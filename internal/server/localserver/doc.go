// Package localserver serves the agent's endpoints on a Unix domain
// socket for local tools.
//
// The socket carries the same ops routes as the TCP listener plus local
// control routes:
//
//   - POST /v1/control/reload: re-read the configuration file
//   - POST /v1/control/shutdown: begin graceful shutdown
//
// Access is controlled by file system permissions: the socket is created
// with mode 0600.
package localserver

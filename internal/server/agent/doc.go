// Package agent runs fieldstore-server: the long-lived process that owns
// the record store on one device.
//
// At startup the agent opens the store, seeds the configured
// administrator and runs an expiration sweep. While running it re-sweeps
// at every reference-zone midnight, on a safety interval and after other
// processes change orders; it logs every change event and serves the ops
// endpoints over TCP and a local Unix socket. Editing the configuration
// file reloads the log level.
package agent

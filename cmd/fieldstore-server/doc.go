// Package main provides the entry point for fieldstore-server.
//
// The server is the long-running agent of a field device. It owns the
// record store and provides:
//
//   - Startup and midnight expiration sweeps of work orders
//   - Change notifications to local subscribers and sibling processes
//   - Loopback HTTP ops endpoints (health, readiness, metrics, status)
//   - A Unix socket for management by fieldstore-cli
//
// Usage:
//
//	fieldstore-server [flags]
//	fieldstore-server --config /etc/fieldstore/server.yaml
//
// Configuration is read from the file, then FIELDSTORE_* environment
// variables. The bootstrap administrator is seeded from
// FIELDSTORE_BOOTSTRAP_ADMIN_NAME, _PASSWORD and _CODE.
package main

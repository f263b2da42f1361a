// Package handler provides the HTTP handlers of the agent's ops surface.
//
//   - health.go: liveness and readiness checks
//   - status.go: meta versions, persistence, storage sizes, build info,
//     on-demand expiration sweep
//
// Responses use the envelope in types.go. Domain errors map to HTTP
// statuses by code suffix.
package handler

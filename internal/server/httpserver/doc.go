// Package httpserver provides the agent's local ops HTTP server.
//
// Endpoints:
//
//   - /healthz, /readyz: liveness and readiness
//   - /metrics: Prometheus exposition
//   - /v1/version, /v1/status, /v1/meta/{family}: read-only inspection
//   - /v1/sweep: run an expiration sweep now
//
// Middleware chain: Recover, RequestID, RateLimit, AccessLog.
package httpserver

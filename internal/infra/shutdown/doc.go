// Package shutdown coordinates graceful termination of the agent.
//
// Hooks run in reverse registration order once SIGINT or SIGTERM arrives,
// Trigger is called or the parent context ends, all under one timeout.
package shutdown

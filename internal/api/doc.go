// Package api is the HTTP control surface of a running watcher and the
// client the CLI uses to reach it.
//
// # Routes
//
//	GET  /api/status   watcher state and counters
//	POST /api/check    run one check now
//	POST /api/ignore   dismiss the open prompt (the prompt's "ignore" control)
//	POST /api/reload   reload the page (the prompt's "reload" control)
//	GET  /api/events   websocket stream of prompt events
//	GET  /metrics      Prometheus metrics
//
// Mutating routes require the configured bearer token, when one is set, and
// share a token-bucket rate limit.
//
// # Design Notes
//
// DTOs use camelCase JSON tags like the rest of the wire formats. Timestamps
// use RFC3339 with milliseconds. Remote check failures map to 502 so callers
// can tell an unreachable origin from a local fault.
package api

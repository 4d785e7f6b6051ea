// Package pkg groups the engine's building blocks. Each subpackage owns one
// concern and depends only on the ones listed before it:
//
//   - protocol: JSON-RPC envelopes, request ids, error codes and the
//     control-method payloads
//   - errors: the RPCError taxonomy and conversion to wire error objects
//   - logging: structured logger with text and JSON formatters
//   - observability: Prometheus metrics and OpenTelemetry tracing
//   - pending: registry of in-flight requests and progress streams
//   - lifecycle: session state, gating layers and the exit signal
//   - router: the immutable method table
//   - client: calls and notifications toward the peer, progress reporting
//   - config: engine settings loaded from code or the environment
//   - server: composition of all of the above into one session
//   - transport: Content-Length framing and the read/dispatch/write loop
//   - utils: test helpers
package pkg

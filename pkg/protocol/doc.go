// Package protocol defines the JSON-RPC 2.0 message model spoken by the
// engine.
//
// # Messages
//
// Every payload is one of three envelopes:
//
//   - Request: carries an id and a method; the peer must answer it
//   - Notification: carries a method but no id; it is never answered
//   - Response: carries the id of the request it answers and exactly one
//     of result or error
//
// DecodeMessage classifies a payload and reports malformed input as a
// *MalformedError. Invalid JSON is reported with code ParseError; valid JSON
// that is not a valid envelope is reported with code InvalidRequest. In both
// cases the requester's id is recovered when it can be read, so the error
// response can be addressed to it.
//
// # Request ids
//
// RequestID holds either an integer or a string and is comparable, so it can
// key maps directly. The two representations never compare equal: 1 and "1"
// are different ids.
//
// # Control methods
//
// methods.go lists the method names the engine handles itself (initialize,
// shutdown, exit, $/cancelRequest, $/progress and the window/* family) and
// the payload types that go with them.
package protocol

package errors

import (
	"fmt"

	"github.com/ajitpratap0/lsp-sdk-go/pkg/protocol"
)

// Wire-level errors

// FramingError reports a malformed header block or a truncated payload. It
// is fatal to the connection.
func FramingError(reason string, cause error) RPCError {
	e := newKind(ErrFraming, CodeParseError, "framing error: "+reason, CategoryTransport, SeverityCritical)
	e.cause = cause
	return e
}

// ParseError reports a payload that is not a valid JSON-RPC envelope
func ParseError(reason string) RPCError {
	return newKind(ErrParse, CodeParseError, "Parse error", CategoryProtocol, SeverityError).WithDetail(reason)
}

// InvalidRequest reports a message that is valid JSON but not a valid request
func InvalidRequest(reason string) RPCError {
	return newKind(nil, CodeInvalidRequest, reason, CategoryProtocol, SeverityError)
}

// MethodNotFound reports a method that is absent from the dispatch table
func MethodNotFound(method string) RPCError {
	return newKind(nil, CodeMethodNotFound, fmt.Sprintf("Method not found: %s", method), CategoryProtocol, SeverityWarning)
}

// InvalidParams reports params that do not match the method's expected shape
func InvalidParams(method string, cause error) RPCError {
	e := newKind(nil, CodeInvalidParams, fmt.Sprintf("Invalid params for %s", method), CategoryValidation, SeverityError)
	e.cause = cause
	if cause != nil {
		e.details = cause.Error()
	}
	return e
}

// InternalError wraps an unexpected failure
func InternalError(operation string, cause error) RPCError {
	msg := fmt.Sprintf("Internal error during %s", operation)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	e := newKind(nil, CodeInternalError, msg, CategoryInternal, SeverityError)
	e.cause = cause
	return e
}

// Lifecycle errors

// ServerNotInitialized is returned for calls that arrive before initialize completed
func ServerNotInitialized(method string) RPCError {
	return newKind(ErrNotInitialized, CodeServerNotInitialized, "Server not initialized", CategoryLifecycle, SeverityWarning).
		WithDetail(fmt.Sprintf("%s received before initialize completed", method))
}

// AlreadyInitialized is returned when initialize is sent more than once
func AlreadyInitialized() RPCError {
	return newKind(nil, CodeInvalidRequest, "Server already initialized", CategoryLifecycle, SeverityWarning)
}

// AlreadyShutDown is returned for calls that arrive after shutdown
func AlreadyShutDown(method string) RPCError {
	return newKind(ErrShutDown, CodeInvalidRequest, "Server already shut down", CategoryLifecycle, SeverityWarning).
		WithDetail(fmt.Sprintf("%s received after shutdown", method))
}

// RequestCancelled is the error a handler may return after observing cancellation
func RequestCancelled(id protocol.RequestID) RPCError {
	return newKind(ErrCancelled, CodeRequestCancelled, "Request cancelled", CategoryCancelled, SeverityInfo).
		WithData(map[string]interface{}{"id": id})
}

// Bookkeeping errors

// DuplicateID reports a registration for an id that is already outstanding
func DuplicateID(direction string, id protocol.RequestID) RPCError {
	return newKind(ErrDuplicateID, CodeInvalidRequest, fmt.Sprintf("Duplicate %s request id %s", direction, id), CategoryInternal, SeverityCritical)
}

// StrayResponse reports a response whose id is not pending
func StrayResponse(id protocol.RequestID) RPCError {
	return newKind(ErrStrayResponse, CodeInvalidRequest, fmt.Sprintf("Response for unknown request id %s", id), CategoryProtocol, SeverityError)
}

// SessionClosed is delivered to every waiter released by session exit
func SessionClosed() RPCError {
	return newKind(ErrSessionClosed, CodeInternalError, "Session closed", CategoryTransport, SeverityWarning)
}

// ProtocolMisuse reports an API contract violation by the caller
func ProtocolMisuse(reason string) RPCError {
	return newKind(ErrProtocolMisuse, CodeInternalError, "Protocol misuse: "+reason, CategoryInternal, SeverityError)
}

// HandlerError lets application handlers choose the code, message and data
// of the error response.
func HandlerError(code int, message string, data interface{}) RPCError {
	return newKind(nil, code, message, CategoryHandler, SeverityError).WithData(data)
}

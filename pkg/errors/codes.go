package errors

import (
	"errors"

	"github.com/ajitpratap0/lsp-sdk-go/pkg/protocol"
)

// JSON-RPC 2.0 standard error codes
const (
	// CodeParseError indicates invalid JSON was received
	CodeParseError = int(protocol.ParseError)

	// CodeInvalidRequest indicates the JSON sent is not a valid Request object
	CodeInvalidRequest = int(protocol.InvalidRequest)

	// CodeMethodNotFound indicates the method does not exist / is not available
	CodeMethodNotFound = int(protocol.MethodNotFound)

	// CodeInvalidParams indicates invalid method parameter(s)
	CodeInvalidParams = int(protocol.InvalidParams)

	// CodeInternalError indicates internal JSON-RPC error
	CodeInternalError = int(protocol.InternalError)
)

// Lifecycle and bookkeeping codes
const (
	CodeUnknown              = int(protocol.UnknownErrorCode)
	CodeServerNotInitialized = int(protocol.ServerNotInitialized)
	CodeRequestCancelled     = int(protocol.RequestCancelled)
)

// Sentinel errors for use with errors.Is
var (
	ErrFraming        = errors.New("framing error")
	ErrParse          = errors.New("parse error")
	ErrNotInitialized = errors.New("server not initialized")
	ErrShutDown       = errors.New("server already shut down")
	ErrDuplicateID    = errors.New("duplicate request id")
	ErrStrayResponse  = errors.New("stray response")
	ErrSessionClosed  = errors.New("session closed")
	ErrProtocolMisuse = errors.New("protocol misuse")
	ErrCancelled      = errors.New("request cancelled")
)

// ErrorCodeInfo provides human-readable information about error codes
type ErrorCodeInfo struct {
	Code     int
	Name     string
	Category Category
	Severity Severity
}

var errorCodeRegistry = map[int]ErrorCodeInfo{
	CodeParseError:           {CodeParseError, "ParseError", CategoryProtocol, SeverityError},
	CodeInvalidRequest:       {CodeInvalidRequest, "InvalidRequest", CategoryProtocol, SeverityError},
	CodeMethodNotFound:       {CodeMethodNotFound, "MethodNotFound", CategoryProtocol, SeverityWarning},
	CodeInvalidParams:        {CodeInvalidParams, "InvalidParams", CategoryValidation, SeverityError},
	CodeInternalError:        {CodeInternalError, "InternalError", CategoryInternal, SeverityError},
	CodeUnknown:              {CodeUnknown, "UnknownErrorCode", CategoryHandler, SeverityError},
	CodeServerNotInitialized: {CodeServerNotInitialized, "ServerNotInitialized", CategoryLifecycle, SeverityWarning},
	CodeRequestCancelled:     {CodeRequestCancelled, "RequestCancelled", CategoryCancelled, SeverityInfo},
}

// GetErrorCodeInfo returns information about an error code
func GetErrorCodeInfo(code int) (ErrorCodeInfo, bool) {
	info, exists := errorCodeRegistry[code]
	return info, exists
}

// GetErrorCodeName returns the name of an error code
func GetErrorCodeName(code int) string {
	if info, exists := errorCodeRegistry[code]; exists {
		return info.Name
	}
	return "UnknownError"
}

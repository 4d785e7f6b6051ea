// Package errors provides structured error handling for the engine.
// It defines an error type that maps onto JSON-RPC error codes and carries
// enough classification for logging and programmatic handling.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Category represents the type/category of an error for classification and handling
type Category string

const (
	CategoryProtocol   Category = "protocol"
	CategoryLifecycle  Category = "lifecycle"
	CategoryValidation Category = "validation"
	CategoryInternal   Category = "internal"
	CategoryTransport  Category = "transport"
	CategoryCancelled  Category = "cancelled"
	CategoryHandler    Category = "handler"
)

// Severity indicates how critical an error is
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Context records where an error occurred
type Context struct {
	RequestID string    `json:"request_id,omitempty"`
	Method    string    `json:"method,omitempty"`
	Component string    `json:"component,omitempty"`
	Operation string    `json:"operation,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RPCError defines the interface for all errors produced by the engine
type RPCError interface {
	error

	// Code returns the JSON-RPC error code
	Code() int

	// Message returns a human-readable error message
	Message() string

	// Details returns detailed technical description for debugging
	Details() string

	// Data returns structured error data sent to the peer
	Data() interface{}

	// Category returns the error category for classification
	Category() Category

	// Severity returns the error severity level
	Severity() Severity

	// Context returns the error context information
	Context() *Context

	// WithContext returns a new error with the provided context
	WithContext(ctx *Context) RPCError

	// WithDetail returns a new error with additional detail
	WithDetail(detail string) RPCError

	// WithData returns a new error with structured data
	WithData(data interface{}) RPCError

	// Unwrap returns the underlying error for error chain traversal
	Unwrap() error
}

// baseError implements the RPCError interface
type baseError struct {
	code     int
	message  string
	details  string
	data     interface{}
	category Category
	severity Severity
	context  *Context
	cause    error
	kind     error
}

// Error implements the error interface
func (e *baseError) Error() string {
	if e.details != "" {
		return fmt.Sprintf("%s: %s", e.message, e.details)
	}
	return e.message
}

func (e *baseError) Code() int { return e.code }
func (e *baseError) Message() string { return e.message }
func (e *baseError) Details() string { return e.details }
func (e *baseError) Data() interface{} { return e.data }
func (e *baseError) Category() Category { return e.category }
func (e *baseError) Severity() Severity { return e.severity }
func (e *baseError) Context() *Context { return e.context }
func (e *baseError) Unwrap() error { return e.cause }

// Is matches the sentinel the error was built from, so callers can use
// errors.Is(err, ErrSessionClosed) without knowing the concrete type.
func (e *baseError) Is(target error) bool {
	return e.kind != nil && e.kind == target
}

// WithContext returns a new error with the provided context
func (e *baseError) WithContext(ctx *Context) RPCError {
	newErr := *e
	newErr.context = ctx
	return &newErr
}

// WithDetail returns a new error with additional detail
func (e *baseError) WithDetail(detail string) RPCError {
	newErr := *e
	if newErr.details != "" {
		newErr.details = fmt.Sprintf("%s; %s", newErr.details, detail)
	} else {
		newErr.details = detail
	}
	return &newErr
}

// WithData returns a new error with structured data
func (e *baseError) WithData(data interface{}) RPCError {
	newErr := *e
	newErr.data = data
	return &newErr
}

// MarshalJSON implements json.Marshaler for baseError
func (e *baseError) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"code":     e.code,
		"message":  e.message,
		"category": string(e.category),
		"severity": string(e.severity),
	}
	if e.details != "" {
		out["details"] = e.details
	}
	if e.data != nil {
		out["data"] = e.data
	}
	if e.cause != nil {
		out["cause"] = e.cause.Error()
	}
	return json.Marshal(out)
}

// NewError creates a new RPCError with the specified parameters
func NewError(code int, message string, category Category, severity Severity) RPCError {
	return &baseError{
		code:     code,
		message:  message,
		category: category,
		severity: severity,
		context:  &Context{Timestamp: time.Now()},
	}
}

// WrapError wraps an existing error as an RPCError
func WrapError(err error, code int, message string, category Category, severity Severity) RPCError {
	return &baseError{
		code:     code,
		message:  message,
		category: category,
		severity: severity,
		cause:    err,
		context:  &Context{Timestamp: time.Now()},
	}
}

func newKind(kind error, code int, message string, category Category, severity Severity) *baseError {
	return &baseError{
		code:     code,
		message:  message,
		category: category,
		severity: severity,
		kind:     kind,
		context:  &Context{Timestamp: time.Now()},
	}
}

// AsRPCError extracts an RPCError from anywhere in err's chain
func AsRPCError(err error) (RPCError, bool) {
	if err == nil {
		return nil, false
	}
	var rpcErr RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr, true
	}
	return nil, false
}

// IsCategory checks if an error is of a specific category
func IsCategory(err error, category Category) bool {
	if rpcErr, ok := AsRPCError(err); ok {
		return rpcErr.Category() == category
	}
	return false
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code int) bool {
	if rpcErr, ok := AsRPCError(err); ok {
		return rpcErr.Code() == code
	}
	return false
}

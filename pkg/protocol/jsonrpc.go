package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	// JSONRPCVersion is the supported JSON-RPC version
	JSONRPCVersion = "2.0"
)

// ErrorCode represents a JSON-RPC 2.0 error code
type ErrorCode int

// Standard JSON-RPC 2.0 error codes
const (
	ParseError     ErrorCode = -32700
	InvalidRequest ErrorCode = -32600
	MethodNotFound ErrorCode = -32601
	InvalidParams  ErrorCode = -32602
	InternalError  ErrorCode = -32603
)

// Codes reserved for the session lifecycle and request bookkeeping.
const (
	// UnknownErrorCode is used when a handler fails without a more specific code
	UnknownErrorCode ErrorCode = -32001
	// ServerNotInitialized is returned for calls that arrive before initialize completed
	ServerNotInitialized ErrorCode = -32002

	// RequestCancelled indicates the request was cancelled by the requester
	RequestCancelled ErrorCode = -32800
	// ContentModified indicates the result was invalidated by a concurrent change
	ContentModified ErrorCode = -32801
	// ServerCancelled indicates the server abandoned the request
	ServerCancelled ErrorCode = -32802
	// RequestFailed indicates a syntactically valid request failed
	RequestFailed ErrorCode = -32803
)

// JSONRPCMessage carries the version marker shared by every envelope
type JSONRPCMessage struct {
	JSONRPC string `json:"jsonrpc"`
}

// Message is one of *Request, *Notification or *Response.
type Message interface {
	isMessage()
}

// Request represents a JSON-RPC 2.0 request
type Request struct {
	JSONRPCMessage
	ID     RequestID       `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// NewRequest creates a new JSON-RPC 2.0 request
func NewRequest(id RequestID, method string, params interface{}) (*Request, error) {
	paramsJSON, err := marshalOptional(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	return &Request{
		JSONRPCMessage: JSONRPCMessage{JSONRPC: JSONRPCVersion},
		ID:             id,
		Method:         method,
		Params:         paramsJSON,
	}, nil
}

// Notification represents a JSON-RPC 2.0 notification
type Notification struct {
	JSONRPCMessage
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// NewNotification creates a new JSON-RPC 2.0 notification
func NewNotification(method string, params interface{}) (*Notification, error) {
	paramsJSON, err := marshalOptional(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	return &Notification{
		JSONRPCMessage: JSONRPCMessage{JSONRPC: JSONRPCVersion},
		Method:         method,
		Params:         paramsJSON,
	}, nil
}

// Response represents a JSON-RPC 2.0 response. A zero ID is written as null.
type Response struct {
	JSONRPCMessage
	ID     RequestID       `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// NewResponse creates a new JSON-RPC 2.0 success response
func NewResponse(id RequestID, result interface{}) (*Response, error) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &Response{
		JSONRPCMessage: JSONRPCMessage{JSONRPC: JSONRPCVersion},
		ID:             id,
		Result:         resultJSON,
	}, nil
}

// NewErrorResponse creates a new JSON-RPC 2.0 error response
func NewErrorResponse(id RequestID, rpcErr *Error) *Response {
	return &Response{
		JSONRPCMessage: JSONRPCMessage{JSONRPC: JSONRPCVersion},
		ID:             id,
		Error:          rpcErr,
	}
}

// MarshalJSON writes exactly one of result or error. A success response
// without a result value is written with "result": null.
func (r Response) MarshalJSON() ([]byte, error) {
	type wire struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      RequestID       `json:"id"`
		Result  json.RawMessage `json:"result,omitempty"`
		Error   *Error          `json:"error,omitempty"`
	}
	w := wire{JSONRPC: r.JSONRPC, ID: r.ID, Error: r.Error}
	if w.JSONRPC == "" {
		w.JSONRPC = JSONRPCVersion
	}
	if r.Error == nil {
		w.Result = r.Result
		if len(w.Result) == 0 {
			w.Result = json.RawMessage("null")
		}
	}
	return json.Marshal(w)
}

// Error represents a JSON-RPC 2.0 error object
type Error struct {
	Code    ErrorCode       `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

func (*Request) isMessage()      {}
func (*Notification) isMessage() {}
func (*Response) isMessage()     {}

// MalformedError reports a payload that could not be turned into a Message.
// ID is set when the requester's id could be recovered from the payload.
type MalformedError struct {
	Code   ErrorCode
	ID     RequestID
	Reason string
}

func (e *MalformedError) Error() string {
	if e.ID.IsValid() {
		return fmt.Sprintf("malformed message (id %s): %s", e.ID, e.Reason)
	}
	return "malformed message: " + e.Reason
}

// envelope mirrors every field a JSON-RPC message may carry. Raw fields keep
// the difference between an absent member and an explicit null.
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  *string         `json:"method"`
	Params  json.RawMessage `json:"params"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error"`
}

// DecodeMessage parses one payload into a Message. Failures are returned as
// *MalformedError with Code ParseError for invalid JSON and InvalidRequest
// for well-formed JSON that is not a valid envelope.
func DecodeMessage(data []byte) (Message, error) {
	if !json.Valid(data) {
		return nil, &MalformedError{Code: ParseError, ID: SalvageID(data), Reason: "payload is not valid JSON"}
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &MalformedError{Code: InvalidRequest, ID: SalvageID(data), Reason: err.Error()}
	}

	var id RequestID
	hasID := len(env.ID) > 0
	if hasID {
		if err := json.Unmarshal(env.ID, &id); err != nil {
			return nil, &MalformedError{Code: InvalidRequest, Reason: err.Error()}
		}
	}

	invalid := func(reason string) error {
		return &MalformedError{Code: InvalidRequest, ID: id, Reason: reason}
	}

	if env.JSONRPC != JSONRPCVersion {
		return nil, invalid(fmt.Sprintf("unsupported jsonrpc version %q", env.JSONRPC))
	}

	params := normalizeParams(env.Params)

	if env.Method != nil {
		if *env.Method == "" {
			return nil, invalid("empty method name")
		}
		if env.Result != nil || env.Error != nil {
			return nil, invalid("request cannot carry result or error")
		}
		if !hasID {
			return &Notification{
				JSONRPCMessage: JSONRPCMessage{JSONRPC: env.JSONRPC},
				Method:         *env.Method,
				Params:         params,
			}, nil
		}
		if !id.IsValid() {
			return nil, invalid("request id must be an integer or a string")
		}
		return &Request{
			JSONRPCMessage: JSONRPCMessage{JSONRPC: env.JSONRPC},
			ID:             id,
			Method:         *env.Method,
			Params:         params,
		}, nil
	}

	switch {
	case env.Result != nil && env.Error != nil:
		return nil, invalid("response cannot carry both result and error")
	case env.Result == nil && env.Error == nil:
		return nil, invalid("message is neither a request nor a response")
	case !hasID:
		return nil, invalid("response is missing id")
	}

	resp := &Response{
		JSONRPCMessage: JSONRPCMessage{JSONRPC: env.JSONRPC},
		ID:             id,
		Error:          env.Error,
	}
	if env.Error == nil {
		resp.Result = env.Result
	}
	return resp, nil
}

// EncodeMessage serializes a Message into its JSON payload.
func EncodeMessage(m Message) ([]byte, error) {
	switch v := m.(type) {
	case *Request:
		if v.JSONRPC == "" {
			v.JSONRPC = JSONRPCVersion
		}
		return json.Marshal(v)
	case *Notification:
		if v.JSONRPC == "" {
			v.JSONRPC = JSONRPCVersion
		}
		return json.Marshal(v)
	case *Response:
		return json.Marshal(v)
	default:
		return nil, fmt.Errorf("unsupported message type %T", m)
	}
}

// SalvageID makes a best-effort attempt at reading the top-level "id" member
// of a payload that failed to parse. It returns the zero RequestID when the
// id precedes nothing it can read.
func SalvageID(data []byte) RequestID {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return RequestID{}
	}

	depth := 1
	expectKey := true
	for depth > 0 {
		tok, err = dec.Token()
		if err != nil {
			return RequestID{}
		}
		switch v := tok.(type) {
		case json.Delim:
			switch v {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
			if depth == 1 {
				expectKey = true
			}
			continue
		case string:
			if depth == 1 && expectKey {
				if v != "id" {
					expectKey = false
					continue
				}
				valTok, err := dec.Token()
				if err != nil {
					return RequestID{}
				}
				return idFromToken(valTok)
			}
		}
		if depth == 1 {
			expectKey = !expectKey
		}
	}
	return RequestID{}
}

func idFromToken(tok json.Token) RequestID {
	switch v := tok.(type) {
	case string:
		return StringID(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return NumberID(n)
		}
	}
	return RequestID{}
}

func marshalOptional(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}

// normalizeParams treats an explicit null like an absent params member.
func normalizeParams(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return raw
}

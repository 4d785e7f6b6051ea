package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/ajitpratap0/lsp-sdk-go/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      RPCError
		code     int
		category Category
	}{
		{"parse", ParseError("unexpected EOF"), CodeParseError, CategoryProtocol},
		{"framing", FramingError("missing Content-Length", nil), CodeParseError, CategoryTransport},
		{"invalid request", InvalidRequest("bad envelope"), CodeInvalidRequest, CategoryProtocol},
		{"method not found", MethodNotFound("foo"), CodeMethodNotFound, CategoryProtocol},
		{"invalid params", InvalidParams("foo", errors.New("want object")), CodeInvalidParams, CategoryValidation},
		{"internal", InternalError("dispatch", nil), CodeInternalError, CategoryInternal},
		{"not initialized", ServerNotInitialized("foo"), CodeServerNotInitialized, CategoryLifecycle},
		{"already initialized", AlreadyInitialized(), CodeInvalidRequest, CategoryLifecycle},
		{"shut down", AlreadyShutDown("foo"), CodeInvalidRequest, CategoryLifecycle},
		{"cancelled", RequestCancelled(protocol.NumberID(1)), CodeRequestCancelled, CategoryCancelled},
		{"handler", HandlerError(-32099, "custom", nil), -32099, CategoryHandler},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code())
			assert.Equal(t, tt.category, tt.err.Category())
			assert.True(t, IsCode(tt.err, tt.code))
			assert.True(t, IsCategory(tt.err, tt.category))
		})
	}
}

func TestSentinels(t *testing.T) {
	tests := []struct {
		err    error
		target error
	}{
		{FramingError("truncated", nil), ErrFraming},
		{ServerNotInitialized("x"), ErrNotInitialized},
		{AlreadyShutDown("x"), ErrShutDown},
		{DuplicateID("inbound", protocol.NumberID(1)), ErrDuplicateID},
		{StrayResponse(protocol.StringID("a")), ErrStrayResponse},
		{SessionClosed(), ErrSessionClosed},
		{ProtocolMisuse("bounded progress needs a percentage"), ErrProtocolMisuse},
		{RequestCancelled(protocol.NumberID(2)), ErrCancelled},
	}

	for _, tt := range tests {
		assert.ErrorIs(t, tt.err, tt.target)
		wrapped := fmt.Errorf("outer: %w", tt.err)
		assert.ErrorIs(t, wrapped, tt.target)
	}

	assert.NotErrorIs(t, InvalidRequest("x"), ErrShutDown)
}

func TestWithMethodsCopy(t *testing.T) {
	base := InvalidRequest("bad")
	detailed := base.WithDetail("first").WithDetail("second")

	assert.Equal(t, "bad", base.Error())
	assert.Equal(t, "bad: first; second", detailed.Error())

	withData := base.WithData(map[string]string{"k": "v"})
	assert.Nil(t, base.Data())
	assert.NotNil(t, withData.Data())
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("eof")
	err := FramingError("truncated payload", cause)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrFraming)
}

func TestToProtocol(t *testing.T) {
	assert.Nil(t, ToProtocol(nil))

	wire := ToProtocol(errors.New("boom"))
	require.NotNil(t, wire)
	assert.Equal(t, protocol.InternalError, wire.Code)
	assert.Equal(t, "boom", wire.Message)

	wire = ToProtocol(HandlerError(-32001, "no document", map[string]string{"uri": "file:///a"}))
	assert.Equal(t, protocol.ErrorCode(-32001), wire.Code)
	assert.Equal(t, "no document", wire.Message)
	assert.JSONEq(t, `{"uri":"file:///a"}`, string(wire.Data))

	original := &protocol.Error{Code: protocol.InvalidParams, Message: "bad"}
	assert.Same(t, original, ToProtocol(fmt.Errorf("wrapped: %w", original)))
}

func TestFromProtocol(t *testing.T) {
	assert.Nil(t, FromProtocol(nil))

	err := FromProtocol(&protocol.Error{
		Code:    protocol.ServerNotInitialized,
		Message: "not yet",
		Data:    json.RawMessage(`{"retry":true}`),
	})
	assert.Equal(t, CodeServerNotInitialized, err.Code())
	assert.Equal(t, CategoryLifecycle, err.Category())
	assert.Equal(t, json.RawMessage(`{"retry":true}`), err.Data())

	var wire *protocol.Error
	require.True(t, errors.As(err, &wire))
	assert.Equal(t, "not yet", wire.Message)
}

func TestErrorCodeNames(t *testing.T) {
	assert.Equal(t, "MethodNotFound", GetErrorCodeName(CodeMethodNotFound))
	assert.Equal(t, "RequestCancelled", GetErrorCodeName(CodeRequestCancelled))
	assert.Equal(t, "UnknownError", GetErrorCodeName(12345))
}

package errors

import (
	"encoding/json"

	"github.com/ajitpratap0/lsp-sdk-go/pkg/protocol"
)

// ToProtocol converts any error into a JSON-RPC error object. Errors that are
// not RPCErrors become InternalError carrying the error text.
func ToProtocol(err error) *protocol.Error {
	if err == nil {
		return nil
	}

	var wireErr *protocol.Error
	if As(err, &wireErr) {
		return wireErr
	}

	rpcErr, ok := AsRPCError(err)
	if !ok {
		return &protocol.Error{
			Code:    protocol.InternalError,
			Message: err.Error(),
		}
	}

	out := &protocol.Error{
		Code:    protocol.ErrorCode(rpcErr.Code()),
		Message: rpcErr.Error(),
	}
	if data := rpcErr.Data(); data != nil {
		if raw, err := json.Marshal(data); err == nil {
			out.Data = raw
		}
	}
	return out
}

// FromProtocol converts a JSON-RPC error object received from the peer
func FromProtocol(wireErr *protocol.Error) RPCError {
	if wireErr == nil {
		return nil
	}

	category, severity := CategoryHandler, SeverityError
	if info, ok := GetErrorCodeInfo(int(wireErr.Code)); ok {
		category, severity = info.Category, info.Severity
	}

	e := WrapError(wireErr, int(wireErr.Code), wireErr.Message, category, severity)
	if len(wireErr.Data) > 0 {
		e = e.WithData(wireErr.Data)
	}
	return e
}

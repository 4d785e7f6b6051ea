package router

import (
	"bytes"
	"context"
	"encoding/json"

	rpcerrors "github.com/ajitpratap0/lsp-sdk-go/pkg/errors"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/lifecycle"
)

// Handler is the untyped form every route is reduced to. Notification
// routes return a nil result.
type Handler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// Route is one dispatch table entry
type Route struct {
	Method string
	Layer  lifecycle.Layer
	// Notification is set for routes whose handler produces no result
	Notification bool

	handler Handler
}

// Handler returns the route's untyped handler
func (r Route) Handler() Handler { return r.handler }

// Request builds a request route whose params decode into P and whose
// result R is encoded as the response result.
func Request[P, R any](method string, layer lifecycle.Layer, fn func(ctx context.Context, params P) (R, error)) Route {
	return Route{
		Method: method,
		Layer:  layer,
		handler: func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var params P
			if err := decodeParams(method, raw, &params); err != nil {
				return nil, err
			}
			return fn(ctx, params)
		},
	}
}

// RequestNoParams builds a request route that takes no params
func RequestNoParams[R any](method string, layer lifecycle.Layer, fn func(ctx context.Context) (R, error)) Route {
	return Route{
		Method: method,
		Layer:  layer,
		handler: func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
			return fn(ctx)
		},
	}
}

// Notification builds a notification route whose params decode into P
func Notification[P any](method string, layer lifecycle.Layer, fn func(ctx context.Context, params P) error) Route {
	return Route{
		Method:       method,
		Layer:        layer,
		Notification: true,
		handler: func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var params P
			if err := decodeParams(method, raw, &params); err != nil {
				return nil, err
			}
			return nil, fn(ctx, params)
		},
	}
}

// NotificationNoParams builds a notification route that takes no params
func NotificationNoParams(method string, layer lifecycle.Layer, fn func(ctx context.Context) error) Route {
	return Route{
		Method:       method,
		Layer:        layer,
		Notification: true,
		handler: func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
			return nil, fn(ctx)
		},
	}
}

// Raw builds a route from an untyped handler
func Raw(method string, layer lifecycle.Layer, notification bool, h Handler) Route {
	return Route{Method: method, Layer: layer, Notification: notification, handler: h}
}

// decodeParams leaves dst at its zero value when params are absent
func decodeParams(method string, raw json.RawMessage, dst interface{}) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return rpcerrors.InvalidParams(method, err)
	}
	return nil
}

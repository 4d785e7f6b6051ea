package client

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	rpcerrors "github.com/ajitpratap0/lsp-sdk-go/pkg/errors"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/pending"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextMessage(t *testing.T, sock *Socket) protocol.Message {
	t.Helper()
	select {
	case msg := <-sock.Outbound():
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no outbound message")
		return nil
	}
}

func TestNotify(t *testing.T) {
	c, sock := New(pending.New())

	require.NoError(t, c.LogMessage(context.Background(), protocol.MessageTypeInfo, "hello"))

	n, ok := nextMessage(t, sock).(*protocol.Notification)
	require.True(t, ok)
	assert.Equal(t, protocol.MethodLogMessage, n.Method)
	assert.JSONEq(t, `{"type":3,"message":"hello"}`, string(n.Params))

	require.NoError(t, c.ShowMessage(context.Background(), protocol.MessageTypeError, "oops"))
	n = nextMessage(t, sock).(*protocol.Notification)
	assert.Equal(t, protocol.MethodShowMessage, n.Method)
}

func TestCallCorrelatesResponse(t *testing.T) {
	c, sock := New(pending.New())

	type result struct {
		Value string `json:"value"`
	}
	done := make(chan error, 1)
	var got result
	go func() {
		done <- c.CallResult(context.Background(), "workspace/configuration", map[string]string{"section": "go"}, &got)
	}()

	req, ok := nextMessage(t, sock).(*protocol.Request)
	require.True(t, ok)
	assert.Equal(t, "workspace/configuration", req.Method)

	resp, err := protocol.NewResponse(req.ID, result{Value: "gofmt"})
	require.NoError(t, err)
	require.NoError(t, sock.HandleResponse(resp))

	require.NoError(t, <-done)
	assert.Equal(t, "gofmt", got.Value)
}

func TestCallOutOfOrderResponses(t *testing.T) {
	c, sock := New(pending.New())

	results := make(map[string]string)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, method := range []string{"first", "second"} {
		wg.Add(1)
		go func(method string) {
			defer wg.Done()
			var out string
			if assert.NoError(t, c.CallResult(context.Background(), method, nil, &out)) {
				mu.Lock()
				results[method] = out
				mu.Unlock()
			}
		}(method)
	}

	reqs := []*protocol.Request{
		nextMessage(t, sock).(*protocol.Request),
		nextMessage(t, sock).(*protocol.Request),
	}
	assert.NotEqual(t, reqs[0].ID, reqs[1].ID)

	// Answer in reverse order, echoing each method name
	for i := len(reqs) - 1; i >= 0; i-- {
		resp, _ := protocol.NewResponse(reqs[i].ID, reqs[i].Method)
		require.NoError(t, sock.HandleResponse(resp))
	}
	wg.Wait()

	assert.Equal(t, map[string]string{"first": "first", "second": "second"}, results)
}

func TestCallErrorResponse(t *testing.T) {
	c, sock := New(pending.New())

	done := make(chan error, 1)
	go func() {
		done <- c.CallResult(context.Background(), "window/showDocument", nil, nil)
	}()

	req := nextMessage(t, sock).(*protocol.Request)
	require.NoError(t, sock.HandleResponse(protocol.NewErrorResponse(req.ID, &protocol.Error{
		Code:    protocol.RequestFailed,
		Message: "no editor",
	})))

	err := <-done
	require.Error(t, err)
	assert.True(t, rpcerrors.IsCode(err, int(protocol.RequestFailed)))
}

func TestStrayResponse(t *testing.T) {
	_, sock := New(pending.New())

	resp, _ := protocol.NewResponse(protocol.NumberID(42), nil)
	err := sock.HandleResponse(resp)
	assert.ErrorIs(t, err, rpcerrors.ErrStrayResponse)
}

func TestCallCancelSendsCancelRequest(t *testing.T) {
	registry := pending.New()
	c, sock := New(registry)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Call(ctx, "workspace/applyEdit", nil)
		done <- err
	}()

	req := nextMessage(t, sock).(*protocol.Request)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)

	n, ok := nextMessage(t, sock).(*protocol.Notification)
	require.True(t, ok)
	assert.Equal(t, protocol.MethodCancelRequest, n.Method)

	var params protocol.CancelParams
	require.NoError(t, json.Unmarshal(n.Params, &params))
	assert.Equal(t, req.ID, params.ID)

	// The late response is now stray
	resp, _ := protocol.NewResponse(req.ID, nil)
	assert.ErrorIs(t, sock.HandleResponse(resp), rpcerrors.ErrStrayResponse)
	assert.Equal(t, 0, registry.Len(pending.Outbound))
}

func TestSessionExitReleasesCallers(t *testing.T) {
	registry := pending.New()
	c, sock := New(registry)

	done := make(chan error, 1)
	go func() {
		_, err := c.Call(context.Background(), "workspace/configuration", nil)
		done <- err
	}()
	nextMessage(t, sock)

	registry.ClearAll()
	sock.Close()

	assert.ErrorIs(t, <-done, rpcerrors.ErrSessionClosed)

	_, err := c.Call(context.Background(), "workspace/configuration", nil)
	assert.ErrorIs(t, err, rpcerrors.ErrSessionClosed)
	assert.ErrorIs(t, c.Notify(context.Background(), "x", nil), rpcerrors.ErrSessionClosed)
}

func TestSendBlocksOnFullQueue(t *testing.T) {
	c, _ := New(pending.New(), WithOutboundBuffer(0))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Notify(ctx, "x", nil), context.DeadlineExceeded)
}

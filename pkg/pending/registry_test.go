package pending

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	rpcerrors "github.com/ajitpratap0/lsp-sdk-go/pkg/errors"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterDuplicate(t *testing.T) {
	r := New()

	_, err := r.Register(context.Background(), Inbound, protocol.NumberID(1))
	require.NoError(t, err)

	_, err = r.Register(context.Background(), Inbound, protocol.NumberID(1))
	assert.ErrorIs(t, err, rpcerrors.ErrDuplicateID)

	// Same id in another direction or representation is a different key
	_, err = r.Register(context.Background(), Outbound, protocol.NumberID(1))
	assert.NoError(t, err)
	_, err = r.Register(context.Background(), Inbound, protocol.StringID("1"))
	assert.NoError(t, err)

	assert.Equal(t, 2, r.Len(Inbound))
	assert.Equal(t, 1, r.Len(Outbound))
}

func TestCancelIsAdvisory(t *testing.T) {
	r := New()
	id := protocol.NumberID(7)

	entry, err := r.Register(context.Background(), Inbound, id)
	require.NoError(t, err)
	assert.False(t, r.IsCancelled(Inbound, id))

	assert.True(t, r.Cancel(Inbound, id))
	assert.True(t, r.Cancel(Inbound, id), "cancel is idempotent")
	assert.True(t, r.IsCancelled(Inbound, id))
	assert.True(t, entry.Cancelled())
	assert.ErrorIs(t, entry.Context().Err(), context.Canceled)

	// The entry stays until the handler finishes
	assert.Equal(t, 1, r.Len(Inbound))
	assert.False(t, r.IsCancelled(Outbound, id))

	assert.True(t, r.Remove(Inbound, id))
	assert.False(t, r.IsCancelled(Inbound, id))
	assert.Equal(t, 0, r.Len(Inbound))
}

func TestCancelUnknownIsNoop(t *testing.T) {
	r := New()
	assert.False(t, r.Cancel(Inbound, protocol.NumberID(99)))
	assert.False(t, r.Remove(Progress, protocol.StringID("x")))
}

func TestCompleteResolvesWaiter(t *testing.T) {
	r := New()
	id := protocol.NumberID(3)

	entry, err := r.Register(context.Background(), Outbound, id)
	require.NoError(t, err)

	resp, err := protocol.NewResponse(id, "ok")
	require.NoError(t, err)
	require.NoError(t, r.Complete(id, resp))

	select {
	case outcome := <-entry.Done():
		assert.NoError(t, outcome.Err)
		assert.Same(t, resp, outcome.Response)
	case <-time.After(time.Second):
		t.Fatal("waiter was not resolved")
	}

	err = r.Complete(id, resp)
	assert.ErrorIs(t, err, rpcerrors.ErrStrayResponse)
}

func TestCompleteUnknownIsStray(t *testing.T) {
	r := New()
	_, err := r.Register(context.Background(), Inbound, protocol.NumberID(1))
	require.NoError(t, err)

	// An inbound id never matches a response
	err = r.Complete(protocol.NumberID(1), &protocol.Response{ID: protocol.NumberID(1)})
	assert.ErrorIs(t, err, rpcerrors.ErrStrayResponse)
}

func TestOutOfOrderResponses(t *testing.T) {
	r := New()
	first, err := r.Register(context.Background(), Outbound, protocol.NumberID(1))
	require.NoError(t, err)
	second, err := r.Register(context.Background(), Outbound, protocol.NumberID(2))
	require.NoError(t, err)

	resp2, _ := protocol.NewResponse(protocol.NumberID(2), "two")
	resp1, _ := protocol.NewResponse(protocol.NumberID(1), "one")
	require.NoError(t, r.Complete(protocol.NumberID(2), resp2))
	require.NoError(t, r.Complete(protocol.NumberID(1), resp1))

	assert.Same(t, resp1, (<-first.Done()).Response)
	assert.Same(t, resp2, (<-second.Done()).Response)
}

func TestClearAll(t *testing.T) {
	var mu sync.Mutex
	observed := map[Direction]int{}
	r := New(WithObserver(func(dir Direction, n int) {
		mu.Lock()
		observed[dir] = n
		mu.Unlock()
	}))

	out, err := r.Register(context.Background(), Outbound, protocol.NumberID(1))
	require.NoError(t, err)
	in, err := r.Register(context.Background(), Inbound, protocol.NumberID(1))
	require.NoError(t, err)

	mu.Lock()
	assert.Equal(t, 1, observed[Outbound])
	mu.Unlock()

	r.ClearAll()

	outcome := <-out.Done()
	assert.ErrorIs(t, outcome.Err, rpcerrors.ErrSessionClosed)
	assert.True(t, in.Cancelled())
	assert.Error(t, in.Context().Err())
	assert.True(t, r.Closed())
	assert.Equal(t, 0, r.Len(Outbound))

	_, err = r.Register(context.Background(), Outbound, protocol.NumberID(2))
	assert.ErrorIs(t, err, rpcerrors.ErrSessionClosed)

	mu.Lock()
	assert.Equal(t, 0, observed[Outbound])
	assert.Equal(t, 0, observed[Inbound])
	mu.Unlock()
}

func TestFail(t *testing.T) {
	r := New()
	entry, err := r.Register(context.Background(), Outbound, protocol.StringID("a"))
	require.NoError(t, err)

	assert.True(t, r.Fail(protocol.StringID("a"), context.Canceled))
	assert.False(t, r.Fail(protocol.StringID("a"), context.Canceled))
	assert.ErrorIs(t, (<-entry.Done()).Err, context.Canceled)
}

func TestConcurrentRegistryAccess(t *testing.T) {
	r := New()
	const workers = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := protocol.StringID(fmt.Sprintf("req-%d", i))

			entry, err := r.Register(context.Background(), Outbound, id)
			if !assert.NoError(t, err) {
				return
			}
			r.Cancel(Outbound, id)
			r.IsCancelled(Outbound, id)

			resp, _ := protocol.NewResponse(id, i)
			assert.NoError(t, r.Complete(id, resp))
			assert.Equal(t, id, (<-entry.Done()).Response.ID)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, r.Len(Outbound))
}

func TestEntryTravelsInContext(t *testing.T) {
	r := New()
	entry, err := r.Register(context.Background(), Inbound, protocol.NumberID(1))
	require.NoError(t, err)

	ctx := ContextWithEntry(entry.Context(), entry)
	got, ok := EntryFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, entry, got)

	_, ok = EntryFromContext(context.Background())
	assert.False(t, ok)
}

package transport

import (
	"context"
	"sync"

	"github.com/ajitpratap0/lsp-sdk-go/pkg/protocol"
)

// notificationQueue is an unbounded FIFO drained by a single worker, so
// notifications run in arrival order without ever blocking the read loop.
type notificationQueue struct {
	mu     sync.Mutex
	items  []*protocol.Notification
	signal chan struct{}
}

func newNotificationQueue() *notificationQueue {
	return &notificationQueue{signal: make(chan struct{}, 1)}
}

func (q *notificationQueue) push(n *protocol.Notification) {
	q.mu.Lock()
	q.items = append(q.items, n)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *notificationQueue) drain() []*protocol.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// run hands queued notifications to handle one at a time until ctx ends or
// done is closed. Notifications still queued at that point are dropped.
func (q *notificationQueue) run(ctx context.Context, done <-chan struct{}, handle func(*protocol.Notification)) {
	for {
		for _, n := range q.drain() {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			default:
			}
			handle(n)
		}

		select {
		case <-q.signal:
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}

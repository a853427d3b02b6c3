package enet

import (
	"time"

	"github.com/sauerbraten/arena/internal/transport"
)

// eventQueue buffers events the consumer has not taken yet. It is used by a
// single goroutine and never blocks on push.
type eventQueue struct {
	out     chan<- transport.Event
	pending []transport.Event
}

func newEventQueue(out chan<- transport.Event) *eventQueue {
	return &eventQueue{out: out}
}

func (q *eventQueue) push(e transport.Event) {
	q.pending = append(q.pending, e)
	q.deliver()
}

func (q *eventQueue) len() int { return len(q.pending) }

// deliver hands queued events over as far as the consumer takes them.
func (q *eventQueue) deliver() {
	for len(q.pending) > 0 {
		select {
		case q.out <- q.pending[0]:
			q.pop()
		default:
			return
		}
	}
}

// wait hands over at most one event, giving up after d.
func (q *eventQueue) wait(d time.Duration) {
	if len(q.pending) == 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case q.out <- q.pending[0]:
		q.pop()
	case <-t.C:
	}
}

func (q *eventQueue) pop() {
	q.pending[0] = transport.Event{}
	q.pending = q.pending[1:]
}

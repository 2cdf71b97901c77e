package mqtt

import (
	"sync"
)

// eventQueue is an unbounded FIFO between the paho router and a handle's
// event goroutine.  push never blocks, so slow handlers cannot stall the
// delivery of command responses.
type eventQueue struct {
	mu     sync.Mutex
	items  []EventMessage
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{signal: make(chan struct{}, 1)}
}

func (eq *eventQueue) push(event EventMessage) {
	eq.mu.Lock()
	eq.items = append(eq.items, event)
	eq.mu.Unlock()

	select {
	case eq.signal <- struct{}{}:
	default:
	}
}

func (eq *eventQueue) drain() []EventMessage {
	eq.mu.Lock()
	defer eq.mu.Unlock()

	items := eq.items
	eq.items = nil
	return items
}

package server

import "sync"

// Outbox buffers UI notifications raised before the UI has signaled
// readiness with "@app/start". Push never blocks or drops; the queue is
// unbounded because the pre-readiness window is short and bounded by the
// UI's startup time.
type Outbox struct {
	mu     sync.Mutex
	queue  []Message
	closed bool
}

// NewOutbox creates an empty outbox.
func NewOutbox() *Outbox {
	return &Outbox{}
}

// Push appends a message to the queue in arrival order.
// After Drain has run the outbox stops accepting; callers should be
// broadcasting directly at that point, but a late Push must not
// resurrect the queue.
func (o *Outbox) Push(msg Message) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	o.queue = append(o.queue, msg)
	return true
}

// Drain returns every queued message in FIFO order and closes the
// outbox. A second Drain returns nil: each queued message is delivered
// at most once even if the UI signals readiness twice.
func (o *Outbox) Drain() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	queued := o.queue
	o.queue = nil
	return queued
}

// Len reports the number of queued messages.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

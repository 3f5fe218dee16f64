package server

import (
	"log"
	"sync"
)

// Broadcaster delivers a message to every connected UI client.
// *Server satisfies this; tests substitute a recorder.
type Broadcaster interface {
	Broadcast(msg Message)
}

// Router routes UI notifications. Before the UI signals readiness with
// "@app/start" every notification is queued in the outbox; after, they
// are broadcast immediately. The mutex orders the readiness flip against
// concurrent Notify calls so queued messages are always delivered before
// anything generated after readiness.
type Router struct {
	mu        sync.Mutex
	ready     bool
	outbox    *Outbox
	broadcast Broadcaster
}

// NewRouter creates a router delivering through b, queueing until the UI
// is ready.
func NewRouter(b Broadcaster) *Router {
	return &Router{
		outbox:    NewOutbox(),
		broadcast: b,
	}
}

// Notify delivers or queues one named notification. Never blocks the
// caller on UI delivery.
func (r *Router) Notify(event string, payload interface{}) {
	msg := NewEventMessage(event, payload)

	r.mu.Lock()
	if !r.ready {
		r.outbox.Push(msg)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	r.broadcast.Broadcast(msg)
}

// Send delivers or queues an already-built message.
func (r *Router) Send(msg Message) {
	r.Notify(string(msg.Type), msg.Payload)
}

// Ready reports whether the UI has signaled readiness.
func (r *Router) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

// AppStarted flips the router to direct delivery and flushes the outbox
// in enqueue order. Holding the lock through the flush means a Notify
// racing with readiness either lands in the outbox (and is flushed here,
// in order) or broadcasts after the flush completes.
func (r *Router) AppStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ready {
		return
	}
	r.ready = true

	queued := r.outbox.Drain()
	if len(queued) > 0 {
		log.Printf("router: flushing %d queued notifications", len(queued))
	}
	for _, msg := range queued {
		r.broadcast.Broadcast(msg)
	}
}

package device

import "sync"

// ChannelController is a Controller fed by in-process event producers.
// The UI process hosts the USB/HID stack and relays controller events
// over its channel to the bridge; Emit is the receiving end.
type ChannelController struct {
	mu      sync.Mutex
	events  chan Event
	handles Handles
	closed  bool
}

// NewChannelController creates a controller with a buffered event stream.
func NewChannelController() *ChannelController {
	return &ChannelController{
		events: make(chan Event, 64),
	}
}

// Emit feeds one event into the stream. Non-blocking: if the listener
// has fallen behind by the whole buffer, the event is dropped and Emit
// reports false.
func (c *ChannelController) Emit(ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.events <- ev:
		return true
	default:
		return false
	}
}

// SetHandles records the live device/wallet/transport references,
// returned to the state machine on ready-state events.
func (c *ChannelController) SetHandles(h Handles) {
	c.mu.Lock()
	c.handles = h
	c.mu.Unlock()
}

// Close ends the event stream.
func (c *ChannelController) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
}

// Events implements Controller.
func (c *ChannelController) Events() <-chan Event {
	return c.events
}

// Handles implements Controller.
func (c *ChannelController) Handles() Handles {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handles
}

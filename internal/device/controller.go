package device

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff"

	apperrors "github.com/keybridge/keybridge/internal/errors"
)

// Listener consumes the hardware controller's event stream and folds
// every event into the state machine. If the stream closes it
// re-subscribes with exponential backoff until the context is cancelled.
type Listener struct {
	machine    *StateMachine
	controller Controller
}

// NewListener creates a listener feeding controller events into machine.
func NewListener(machine *StateMachine, controller Controller) *Listener {
	machine.SetController(controller)
	return &Listener{machine: machine, controller: controller}
}

// Run blocks consuming events until ctx is cancelled. A closed event
// stream is treated as a transient controller fault: DeviceStatus is
// degraded to the error state and the listener re-subscribes.
func (l *Listener) Run(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 30 * time.Second
	policy.MaxElapsedTime = 0 // retry until cancelled

	operation := func() error {
		if err := l.consume(ctx); err != nil {
			return err
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.Printf("device: event stream lost, retrying in %s: %v", wait, err)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// consume drains the controller's event channel until it closes or the
// context is cancelled. Returns nil only on context cancellation.
func (l *Listener) consume(ctx context.Context) error {
	events := l.controller.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				l.machine.SetStatus(StateError, "Hardware controller disconnected")
				return apperrors.StreamClosed()
			}
			l.machine.Apply(ev)
		}
	}
}

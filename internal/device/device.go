// Package device owns the canonical connection/firmware state of the
// hardware wallet. The hardware controller (an external collaborator)
// emits events on its own schedule; this package folds them into a single
// DeviceStatus record and raises the UI notifications each transition
// requires.
package device

import (
	"encoding/json"
	"fmt"

	apperrors "github.com/keybridge/keybridge/internal/errors"
)

// Device state codes. These are the only values a DeviceStatus.State may
// carry; events with any other code are dropped as malformed.
const (
	StateError          = -1 // bridge or hardware error
	StatePreInit        = 0  // process started, nothing known yet
	StateNoDevice       = 1  // no device attached
	StateConnected      = 2  // device attached, bridge not serving
	StateBridgeOnline   = 3  // bridge HTTP server is up
	StateReady          = 4  // device ready, wallet usable
	StateReadyAlternate = 5  // ready after a bootloader/firmware event
)

// DeviceStatus is the canonical connection/firmware state of the device.
// It is replaced atomically as a whole; readers never observe a state
// code paired with another event's status text.
type DeviceStatus struct {
	State  int    `json:"state"`
	Status string `json:"status"`
}

// StatusText returns the default human-readable label for a state code.
// Controller events carry their own status text; this is used for
// transitions the bridge generates itself.
func StatusText(state int) string {
	switch state {
	case StateError:
		return "bridge error"
	case StatePreInit:
		return "preInit"
	case StateNoDevice:
		return "no devices"
	case StateConnected:
		return "device connected"
	case StateBridgeOnline:
		return "bridge online"
	case StateReady:
		return "device ready"
	case StateReadyAlternate:
		return "device ready"
	default:
		return "unknown"
	}
}

// validState reports whether a controller-supplied state code is one of
// the defined codes.
func validState(state int) bool {
	return state >= StateError && state <= StateReadyAlternate
}

// EventKind distinguishes the controller's event channels.
type EventKind string

const (
	// EventKindState carries a connection/firmware state transition.
	EventKindState EventKind = "state"

	// EventKindError reports a hardware error without a state change.
	EventKindError EventKind = "error"

	// EventKindLog carries controller progress logs; some flag that a
	// bootloader or firmware update is needed.
	EventKindLog EventKind = "logs"

	// EventKindAttach and EventKindDetach report raw USB plug events.
	EventKindAttach EventKind = "attach"
	EventKindDetach EventKind = "detach"
)

// Event is one notification from the hardware controller.
type Event struct {
	// Kind selects which of the controller's channels emitted this event.
	Kind EventKind `json:"kind"`

	// State and Status are set for state events.
	State  int    `json:"state"`
	Status string `json:"status"`

	// Error and Code are set for error events (and sometimes carried on
	// state events describing an error condition).
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`

	// BootloaderUpdateNeeded and FirmwareUpdateNeeded are set on log
	// events when the controller has determined an update is required.
	BootloaderUpdateNeeded bool `json:"bootloaderUpdateNeeded,omitempty"`
	FirmwareUpdateNeeded   bool `json:"firmwareUpdateNeeded,omitempty"`

	// Features is the device feature blob, present once the controller
	// has read it from the device (ready states).
	Features map[string]interface{} `json:"features,omitempty"`
}

// ParseEvent decodes a wire-format controller event.
// Malformed events - invalid JSON, unknown kind, or a state event with an
// undefined state code - are rejected so the caller can log and drop them
// without touching DeviceStatus.
func ParseEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, apperrors.MalformedEvent(err)
	}

	switch ev.Kind {
	case EventKindState:
		if !validState(ev.State) {
			return Event{}, apperrors.MalformedEvent(fmt.Errorf("undefined state code %d", ev.State))
		}
	case EventKindError, EventKindLog, EventKindAttach, EventKindDetach:
		// No further structure required.
	default:
		return Event{}, apperrors.MalformedEvent(fmt.Errorf("unknown event kind %q", ev.Kind))
	}

	return ev, nil
}

// Handles are the controller's live device/wallet/transport references,
// captured when the device reaches a ready state. Opaque to this package;
// other subsystems (transaction signing, firmware transfer) consume them.
type Handles struct {
	Device    interface{}
	Wallet    interface{}
	Transport interface{}
}

// Controller is the hardware controller's interface as seen by the bridge.
// Implementations wrap the actual USB/HID transport, which is outside
// this subsystem.
type Controller interface {
	// Events returns the controller's event stream. The channel is
	// closed when the controller shuts down or loses the transport.
	Events() <-chan Event

	// Handles returns the current device/wallet/transport references.
	// Only meaningful after a ready-state event.
	Handles() Handles
}

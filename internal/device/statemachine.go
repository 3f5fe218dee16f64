package device

import (
	"log"
	"sync"
)

// UI notification names raised by the state machine. These are part of
// the cross-process contract with the desktop UI.
const (
	NotifySetState              = "setKeepKeyState"
	NotifySetStatus             = "setKeepKeyStatus"
	NotifySetUpdaterMode        = "setUpdaterMode"
	NotifyOpenHardwareError     = "openHardwareError"
	NotifyCloseHardwareError    = "closeHardwareError"
	NotifyOpenBootloaderUpdate  = "openBootloaderUpdate"
	NotifyCloseBootloaderUpdate = "closeBootloaderUpdate"
	NotifyOpenFirmwareUpdate    = "openFirmwareUpdate"
	NotifyCloseFirmwareUpdate   = "closeFirmwareUpdate"
	NotifyOnboardOpen           = "@onboard/open"
	NotifyOnboardState          = "@onboard/state"
	NotifyAttach                = "attach"
	NotifyDetach                = "detach"
)

// Notifier delivers a named notification toward the UI. The server's
// notification router satisfies this; it decides whether the event is
// sent immediately or queued until the UI is ready.
type Notifier func(event string, payload interface{})

// StateMachine owns the single shared DeviceStatus record.
// Only this type mutates it, and every mutation replaces the whole
// record under one lock, so concurrent readers never observe a torn
// (state, status) pair.
type StateMachine struct {
	mu sync.RWMutex

	// status is the canonical device status. Created at process start
	// with StatePreInit and updated for the process lifetime.
	status DeviceStatus

	// features is the cached hardware feature blob served by GET /device.
	// Nil until the controller or the UI reports one.
	features map[string]interface{}

	// handles are the controller references captured on ready states.
	handles Handles

	// controller supplies handles on ready-state events. May be nil in
	// tests or before the controller has connected.
	controller Controller

	// notify delivers UI notifications. Never nil (defaults to a no-op).
	notify Notifier
}

// NewStateMachine creates a state machine in the pre-init state.
func NewStateMachine(notify Notifier) *StateMachine {
	if notify == nil {
		notify = func(string, interface{}) {}
	}
	return &StateMachine{
		status: DeviceStatus{State: StatePreInit, Status: StatusText(StatePreInit)},
		notify: notify,
	}
}

// SetController attaches the controller whose handles are captured when
// the device reaches a ready state.
func (m *StateMachine) SetController(c Controller) {
	m.mu.Lock()
	m.controller = c
	m.mu.Unlock()
}

// Status returns the current device status.
// Safe to call concurrently with Apply; never fails.
func (m *StateMachine) Status() DeviceStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Features returns the cached hardware feature blob, or nil if no device
// has reported features yet.
func (m *StateMachine) Features() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.features
}

// SetFeatures replaces the cached feature blob. The UI reports the blob
// it read from the device; GET /device serves it back to callers.
func (m *StateMachine) SetFeatures(features map[string]interface{}) {
	m.mu.Lock()
	m.features = features
	m.mu.Unlock()
}

// Handles returns the controller references captured on the last
// ready-state event. Zero value until the device has been ready.
func (m *StateMachine) Handles() Handles {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handles
}

// SetStatus replaces the device status with a bridge-generated transition
// (bridge online, bridge error, bridge stopped) and tells the UI.
// Controller-driven transitions go through Apply instead.
func (m *StateMachine) SetStatus(state int, statusText string) {
	m.mu.Lock()
	m.status = DeviceStatus{State: state, Status: statusText}
	m.mu.Unlock()

	m.notify(NotifySetState, map[string]interface{}{"state": state})
	m.notify(NotifySetStatus, map[string]interface{}{"status": statusText})
}

// Apply folds one hardware controller event into the device status and
// raises the side-effect notifications the transition requires.
// Events are applied in the order received from the controller; this
// subsystem trusts the controller's emission order.
func (m *StateMachine) Apply(ev Event) {
	switch ev.Kind {
	case EventKindState:
		m.applyState(ev)
	case EventKindError:
		log.Printf("device: hardware error event: %s", ev.Error)
		m.notify(NotifyOpenHardwareError, map[string]interface{}{
			"error": ev.Error,
			"code":  ev.Code,
		})
	case EventKindLog:
		m.notify(NotifyCloseHardwareError, nil)
		if ev.BootloaderUpdateNeeded || ev.FirmwareUpdateNeeded {
			m.notify(NotifyOnboardOpen, ev)
			m.notify(NotifyOnboardState, ev)
		}
	case EventKindAttach:
		log.Printf("device: attach")
		m.notify(NotifyAttach, nil)
	case EventKindDetach:
		log.Printf("device: detach")
		m.notify(NotifyDetach, nil)
	}
}

// applyState handles a state-transition event. The status record is
// replaced atomically first, then per-code side effects fire.
func (m *StateMachine) applyState(ev Event) {
	if !validState(ev.State) {
		// Defensive: ParseEvent rejects these, but a controller wired in
		// directly could still hand us one. Last valid status wins.
		log.Printf("device: dropping state event with undefined code %d", ev.State)
		return
	}

	m.mu.Lock()
	m.status = DeviceStatus{State: ev.State, Status: ev.Status}
	controller := m.controller
	m.mu.Unlock()

	log.Printf("device: state change: %d (%s)", ev.State, ev.Status)

	switch ev.State {
	case StatePreInit:
		// No devices connected.
		m.notify(NotifyCloseBootloaderUpdate, nil)
		m.notify(NotifyCloseFirmwareUpdate, nil)
		m.notify(NotifyOpenHardwareError, map[string]interface{}{
			"error": ev.Error,
			"code":  ev.Code,
		})

	case StateNoDevice:
		// Device present but in bootloader/updater mode.
		m.notify(NotifySetUpdaterMode, map[string]interface{}{"payload": true})

	case StateReady:
		m.notify(NotifyCloseHardwareError, nil)
		m.notify(NotifyCloseBootloaderUpdate, nil)
		m.notify(NotifyCloseFirmwareUpdate, nil)
		m.captureController(controller, ev)

	case StateReadyAlternate:
		m.notify(NotifyCloseHardwareError, nil)
		m.captureController(controller, ev)

	default:
		// Explicitly unhandled: status already updated, no side effects.
	}
}

// captureController stores the controller's live handles and feature blob
// so other subsystems can use the wallet.
func (m *StateMachine) captureController(controller Controller, ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if controller != nil {
		m.handles = controller.Handles()
	}
	if ev.Features != nil {
		m.features = ev.Features
	}
}

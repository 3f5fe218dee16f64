package server

// MessageType identifies a UI channel message. The names mirror the IPC
// event names the desktop UI listens for, so the frontend protocol is
// unchanged.
type MessageType string

// Server -> UI notifications.
const (
	// MessageTypePairPrompt asks the UI to show the pairing approval modal.
	MessageTypePairPrompt MessageType = "@modal/pair"

	// MessageTypeSetState and MessageTypeSetStatus push device status
	// changes to the UI header.
	MessageTypeSetState  MessageType = "setKeepKeyState"
	MessageTypeSetStatus MessageType = "setKeepKeyStatus"

	// MessageTypeSetUpdaterMode tells the UI the device booted into its
	// bootloader/updater.
	MessageTypeSetUpdaterMode MessageType = "setUpdaterMode"

	// Hardware error dialog control.
	MessageTypeOpenHardwareError  MessageType = "openHardwareError"
	MessageTypeCloseHardwareError MessageType = "closeHardwareError"

	// Bootloader/firmware update dialog control.
	MessageTypeOpenBootloaderUpdate  MessageType = "openBootloaderUpdate"
	MessageTypeCloseBootloaderUpdate MessageType = "closeBootloaderUpdate"
	MessageTypeOpenFirmwareUpdate    MessageType = "openFirmwareUpdate"
	MessageTypeCloseFirmwareUpdate   MessageType = "closeFirmwareUpdate"

	// MessageTypePlaySound asks the UI to play a notification sound.
	MessageTypePlaySound MessageType = "playSound"

	// MessageTypeLoadOrigins pushes the approved-origin cache to the UI.
	MessageTypeLoadOrigins MessageType = "loadOrigins"

	// MessageTypePairedApps pushes the current paired-service list.
	MessageTypePairedApps MessageType = "@bridge/paired-apps"

	// Onboarding wizard control, raised when the controller reports a
	// bootloader or firmware update is needed.
	MessageTypeOnboardOpen  MessageType = "@onboard/open"
	MessageTypeOnboardState MessageType = "@onboard/state"
)

// UI -> server messages.
const (
	// MessageTypeAppStart signals the UI finished loading; queued
	// notifications are flushed in response.
	MessageTypeAppStart MessageType = "@app/start"

	// MessageTypeApproveService and MessageTypeRejectService carry the
	// user's decision for a pending pairing prompt, identified by nonce.
	MessageTypeApproveService MessageType = "@bridge/approve-service"
	MessageTypeRejectService  MessageType = "@bridge/reject-service"

	// MessageTypeAddService and MessageTypeRemoveService manage the
	// paired-service list directly from the UI settings screen.
	MessageTypeAddService    MessageType = "@bridge/add-service"
	MessageTypeRemoveService MessageType = "@bridge/remove-service"

	// MessageTypeApproveOrigin records a browser origin in the
	// UI-approval cache.
	MessageTypeApproveOrigin MessageType = "@account/approve-origin"

	// MessageTypeDeviceInfo reports the feature blob the UI read from
	// the device, cached for GET /device.
	MessageTypeDeviceInfo MessageType = "@keepkey/info"

	// MessageTypeHardwareEvent relays one hardware controller event from
	// the UI process, which hosts the USB stack, into the bridge.
	MessageTypeHardwareEvent MessageType = "@device/event"
)

// Message is one UI channel frame: an event name plus a JSON payload.
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// PairPromptPayload is the body of a "@modal/pair" message.
type PairPromptPayload struct {
	ServiceName     string `json:"serviceName"`
	ServiceImageURL string `json:"serviceImageUrl"`
	Nonce           string `json:"nonce"`
}

// DecisionPayload identifies which pending pairing prompt a
// "@bridge/approve-service" or "@bridge/reject-service" message decides.
type DecisionPayload struct {
	Nonce string `json:"nonce"`
}

// ServicePayload is the body of "@bridge/add-service" and
// "@bridge/remove-service" messages.
type ServicePayload struct {
	ServiceName     string `json:"serviceName"`
	ServiceImageURL string `json:"serviceImageUrl,omitempty"`
	ServiceKey      string `json:"serviceKey,omitempty"`
}

// OriginPayload is the body of an "@account/approve-origin" message.
type OriginPayload struct {
	Origin string `json:"origin"`
}

// DeviceInfoPayload is the body of a "@keepkey/info" message.
type DeviceInfoPayload struct {
	Features map[string]interface{} `json:"features"`
}

// HardwareErrorPayload is the body of an "openHardwareError" message.
type HardwareErrorPayload struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// NewPairPromptMessage builds the pairing approval prompt for the UI.
func NewPairPromptMessage(serviceName, serviceImageURL, nonce string) Message {
	return Message{
		Type: MessageTypePairPrompt,
		Payload: PairPromptPayload{
			ServiceName:     serviceName,
			ServiceImageURL: serviceImageURL,
			Nonce:           nonce,
		},
	}
}

// NewStateMessage builds a device state code update.
func NewStateMessage(state int) Message {
	return Message{
		Type:    MessageTypeSetState,
		Payload: map[string]interface{}{"state": state},
	}
}

// NewStatusMessage builds a device status text update.
func NewStatusMessage(status string) Message {
	return Message{
		Type:    MessageTypeSetStatus,
		Payload: map[string]interface{}{"status": status},
	}
}

// NewUpdaterModeMessage tells the UI whether the device is in updater mode.
func NewUpdaterModeMessage(on bool) Message {
	return Message{
		Type:    MessageTypeSetUpdaterMode,
		Payload: map[string]interface{}{"payload": on},
	}
}

// NewPlaySoundMessage asks the UI to play the named sound.
func NewPlaySoundMessage(sound string) Message {
	return Message{
		Type:    MessageTypePlaySound,
		Payload: map[string]interface{}{"sound": sound},
	}
}

// NewEventMessage builds a payload-bearing message with an arbitrary type.
// Used by the notification router, which receives (event, payload) pairs
// from subsystems that do not depend on this package.
func NewEventMessage(event string, payload interface{}) Message {
	return Message{Type: MessageType(event), Payload: payload}
}

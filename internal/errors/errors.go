// Package errors provides standardized error codes for the bridge.
//
// Error codes follow the format {domain}.{error} where:
//   - domain: The subsystem that generated the error (pairing, device, storage, server)
//   - error: The specific error type within that domain
//
// These codes are stable and can be used by the desktop UI and by paired
// applications for programmatic error handling. Human-readable messages
// are provided alongside codes.
package errors

import (
	"errors"
	"fmt"
)

// Error codes by domain.
// These are stable identifiers that callers can rely on for error handling.
const (
	// Pairing domain - the request/approve/reject handshake
	CodePairingRejected     = "pairing.rejected"      // User rejected the pairing prompt
	CodePairingNotFound     = "pairing.not_found"     // No pending request for this nonce
	CodePairingDuplicate    = "pairing.duplicate"     // A request for this nonce is already pending
	CodePairingWindowClosed = "pairing.window_closed" // No UI client connected to show the prompt
	CodePairingMissingBody  = "pairing.missing_body"  // serviceName or serviceImageUrl absent
	CodePairingExpired      = "pairing.expired"       // Optional expiry elapsed before a decision
	CodePairingRateLimited  = "pairing.rate_limited"  // Too many pairing prompts in flight

	// Device domain - hardware controller event stream
	CodeDeviceMalformedEvent = "device.malformed_event" // Controller event failed to parse
	CodeDeviceStreamClosed   = "device.stream_closed"   // Controller event stream ended

	// Storage domain - database and persistence errors
	CodeStorageNotFound   = "storage.not_found"   // Record not found
	CodeStorageOpenFailed = "storage.open_failed" // Database open failed
	CodeStorageSaveFailed = "storage.save_failed" // Failed to save data

	// Server domain - HTTP listener and WebSocket errors
	CodeServerBindFailed     = "server.bind_failed"     // Listener could not bind (port in use)
	CodeServerInvalidMessage = "server.invalid_message" // Malformed or invalid UI message

	// General domain - catch-all errors
	CodeUnknown  = "error.unknown"  // Unknown error
	CodeInternal = "error.internal" // Internal server error
)

// CodedError wraps an error with a stable error code.
// This allows errors to carry both a code for programmatic handling
// and a message for human consumption.
type CodedError struct {
	Code    string // Stable error code (e.g., "pairing.rejected")
	Message string // Human-readable error message
	Cause   error  // Underlying error (may be nil)
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// New creates a new CodedError with the given code and message.
func New(code, message string) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new CodedError wrapping an existing error.
func Wrap(code, message string, cause error) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// GetCode extracts the error code from an error.
// If the error is a CodedError, returns its code.
// Falls back to CodeUnknown for unrecognized errors.
func GetCode(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}

	return CodeUnknown
}

// GetMessage extracts a human-readable message from an error.
// If the error is a CodedError, returns its message.
// Otherwise, returns the error's Error() string.
func GetMessage(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Message
	}

	return err.Error()
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code string) bool {
	return GetCode(err) == code
}

// Common error constructors for frequently used error types.

// PairingRejected creates a "pairing.rejected" error.
// The message is the exact reason string surfaced to the HTTP caller.
func PairingRejected(nonce string) *CodedError {
	return &CodedError{
		Code:    CodePairingRejected,
		Message: "Pairing was rejected by user",
		Cause:   fmt.Errorf("nonce %s", nonce),
	}
}

// PairingNotFound creates a "pairing.not_found" error.
// This indicates a decision arrived for a nonce with no pending request
// (already decided, expired, or never issued).
func PairingNotFound(nonce string) *CodedError {
	return New(CodePairingNotFound, fmt.Sprintf("no pending pairing request for nonce %s", nonce))
}

// PairingDuplicate creates a "pairing.duplicate" error.
func PairingDuplicate(nonce string) *CodedError {
	return New(CodePairingDuplicate, fmt.Sprintf("pairing request %s is already pending", nonce))
}

// PairingWindowClosed creates a "pairing.window_closed" error.
// The message is the exact reason string surfaced to the HTTP caller.
func PairingWindowClosed() *CodedError {
	return New(CodePairingWindowClosed, "Window not open")
}

// PairingMissingBody creates a "pairing.missing_body" error.
// The message is the exact reason string surfaced to the HTTP caller.
func PairingMissingBody() *CodedError {
	return New(CodePairingMissingBody, "Missing body parameters")
}

// PairingExpired creates a "pairing.expired" error.
// Only produced when the optional pair timeout is configured.
func PairingExpired(nonce string) *CodedError {
	return New(CodePairingExpired, fmt.Sprintf("pairing request %s expired before a decision", nonce))
}

// MalformedEvent creates a "device.malformed_event" error.
func MalformedEvent(cause error) *CodedError {
	return Wrap(CodeDeviceMalformedEvent, "hardware event failed to parse", cause)
}

// StreamClosed creates a "device.stream_closed" error.
func StreamClosed() *CodedError {
	return New(CodeDeviceStreamClosed, "hardware controller event stream closed")
}

// SaveFailed creates a "storage.save_failed" error.
func SaveFailed(what string, cause error) *CodedError {
	return Wrap(CodeStorageSaveFailed, fmt.Sprintf("failed to save %s", what), cause)
}

// BindFailed creates a "server.bind_failed" error.
func BindFailed(addr string, cause error) *CodedError {
	return Wrap(CodeServerBindFailed, fmt.Sprintf("failed to listen on %s", addr), cause)
}

// InvalidMessage creates a "server.invalid_message" error.
func InvalidMessage(reason string) *CodedError {
	return New(CodeServerInvalidMessage, reason)
}

// Internal creates an "error.internal" error.
func Internal(message string, cause error) *CodedError {
	return Wrap(CodeInternal, message, cause)
}

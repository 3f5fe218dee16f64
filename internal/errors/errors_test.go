package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestCodedError_Error(t *testing.T) {
	err := New(CodePairingNotFound, "no pending pairing request for nonce abc")
	if !strings.Contains(err.Error(), CodePairingNotFound) {
		t.Errorf("expected code in message, got %q", err.Error())
	}

	wrapped := Wrap(CodeStorageSaveFailed, "failed to save service", fmt.Errorf("disk full"))
	if !strings.Contains(wrapped.Error(), "disk full") {
		t.Errorf("expected cause in message, got %q", wrapped.Error())
	}
}

func TestGetCode(t *testing.T) {
	if code := GetCode(nil); code != "" {
		t.Errorf("expected empty code for nil, got %q", code)
	}

	if code := GetCode(PairingRejected("n1")); code != CodePairingRejected {
		t.Errorf("expected %s, got %s", CodePairingRejected, code)
	}

	// Wrapped CodedError is still recognized through errors.As.
	outer := fmt.Errorf("pair handler: %w", PairingWindowClosed())
	if code := GetCode(outer); code != CodePairingWindowClosed {
		t.Errorf("expected %s through wrapping, got %s", CodePairingWindowClosed, code)
	}

	if code := GetCode(stderrors.New("plain")); code != CodeUnknown {
		t.Errorf("expected %s for plain error, got %s", CodeUnknown, code)
	}
}

func TestGetMessage_ReasonStrings(t *testing.T) {
	// These messages are part of the HTTP contract and must not drift.
	cases := []struct {
		err  error
		want string
	}{
		{PairingWindowClosed(), "Window not open"},
		{PairingMissingBody(), "Missing body parameters"},
		{PairingRejected("n1"), "Pairing was rejected by user"},
	}

	for _, tc := range cases {
		if got := GetMessage(tc.err); got != tc.want {
			t.Errorf("GetMessage(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestIsCode(t *testing.T) {
	err := PairingDuplicate("n2")
	if !IsCode(err, CodePairingDuplicate) {
		t.Error("IsCode should match the error's own code")
	}
	if IsCode(err, CodePairingRejected) {
		t.Error("IsCode should not match a different code")
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("bind: address already in use")
	err := BindFailed("127.0.0.1:1646", cause)
	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause through Unwrap")
	}
}

package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorString(t *testing.T) {
	err := &Error{Type: ErrTransport, Message: "connection reset"}
	if got := err.Error(); got != "transport_error: connection reset" {
		t.Errorf("unexpected error string: %q", got)
	}

	err = &Error{Type: ErrDevice, Message: "mic unavailable", Code: "no_device"}
	if got := err.Error(); got != "device_error: mic unavailable (code: no_device)" {
		t.Errorf("unexpected error string: %q", got)
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(NewTransportError("dropped")) {
		t.Error("transport error should be transient")
	}
	if IsTransient(NewDeviceError("denied")) {
		t.Error("device error should not be transient")
	}
	if IsTransient(errors.New("plain")) {
		t.Error("plain error should not be transient")
	}

	// Wrapped errors still classify.
	wrapped := fmt.Errorf("dial: %w", NewTransportError("refused"))
	if !IsTransient(wrapped) {
		t.Error("wrapped transport error should be transient")
	}
}

func TestIsDeviceFault(t *testing.T) {
	if !IsDeviceFault(NewDeviceError("camera in use")) {
		t.Error("device error should classify as device fault")
	}
	if IsDeviceFault(NewTransportError("closed")) {
		t.Error("transport error should not classify as device fault")
	}
}

package core

import (
	"errors"
	"fmt"
)

// Error represents a classified engine error.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    string    `json:"code,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	// ErrTransport marks a transient transport fault. Never surfaced to the
	// user; always answered by the auto-reconnect policy.
	ErrTransport ErrorType = "transport_error"
	// ErrDevice marks an audio/video source fault. Terminal for the connect
	// attempt; surfaced once, no automatic retry.
	ErrDevice ErrorType = "device_error"
	// ErrInvalidRequest marks API misuse by the caller.
	ErrInvalidRequest ErrorType = "invalid_request_error"
)

// NewTransportError creates a transient transport error.
func NewTransportError(message string) *Error {
	return &Error{Type: ErrTransport, Message: message}
}

// NewTransportErrorf creates a transient transport error with formatting.
func NewTransportErrorf(format string, args ...any) *Error {
	return &Error{Type: ErrTransport, Message: fmt.Sprintf(format, args...)}
}

// NewDeviceError creates a device/permission error.
func NewDeviceError(message string) *Error {
	return &Error{Type: ErrDevice, Message: message}
}

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{Type: ErrInvalidRequest, Message: message}
}

// IsTransient reports whether err is a transport fault that the reconnect
// policy should absorb.
func IsTransient(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == ErrTransport
	}
	return false
}

// IsDeviceFault reports whether err is a device/permission fault.
func IsDeviceFault(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == ErrDevice
	}
	return false
}

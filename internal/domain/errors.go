package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent failure conditions shared across packages.
// They are wrapped with context at call sites and checked with errors.Is.
var (
	// ErrTimeout indicates a network operation exceeded its deadline.
	// Retryable.
	ErrTimeout = errors.New("rcc: timeout")

	// ErrConnectionFailed indicates the peer was unreachable or refused
	// the connection. Retryable.
	ErrConnectionFailed = errors.New("rcc: connection failed")

	// ErrAssociationFailed indicates a WiFi join did not complete.
	// Retryable with linear backoff.
	ErrAssociationFailed = errors.New("rcc: wifi association failed")

	// ErrInterrupted marks a device record whose workflow was aborted
	// by an operator-initiated cancellation.
	ErrInterrupted = errors.New("rcc: provisioning interrupted")

	// ErrUnsupportedPlatform is returned at startup when no WiFi
	// controller exists for the host OS. Hard error, not retryable.
	ErrUnsupportedPlatform = errors.New("rcc: wifi control not supported on this platform")
)

// ProtocolError is a structured error returned by a device RPC call.
// It is retryable a bounded number of times, then fatal for the step.
type ProtocolError struct {
	Code    int
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("device rpc error: %s (code %d)", e.Message, e.Code)
	}
	return fmt.Sprintf("device rpc error: %s", e.Message)
}

// Transient reports whether err is worth retrying at all.
// Protocol errors count: devices in AP mode answer flakily while their
// radio is reconfiguring.
func Transient(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrConnectionFailed) || errors.Is(err, ErrAssociationFailed) {
		return true
	}
	var pe *ProtocolError
	return errors.As(err, &pe)
}

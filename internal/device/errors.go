package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned in strict mode when an update names an
	// unregistered device ID.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidListener is returned when subscribing a nil listener.
	ErrInvalidListener = errors.New("device: invalid listener")

	// ErrInvalidSeed is returned when an initial snapshot has an empty or
	// duplicate device ID.
	ErrInvalidSeed = errors.New("device: invalid seed")

	// ErrQueueClosed is returned by a QueuedListener after Stop.
	ErrQueueClosed = errors.New("device: listener queue closed")
)

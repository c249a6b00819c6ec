package telemetry

import "errors"

// Sentinel errors.
var (
	ErrInvalidTopic   = errors.New("telemetry: topic does not name a device")
	ErrInvalidPayload = errors.New("telemetry: invalid payload")
	ErrUnknownDevice  = errors.New("telemetry: unknown device")
	ErrNotStarted     = errors.New("telemetry: ingestor not started")
)

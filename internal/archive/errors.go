package archive

import "errors"

// Domain errors.
var (
	ErrDeviceIDRequired = errors.New("archive: device id is required")
	ErrInvalidRetention = errors.New("archive: retention must be positive")
)

package influxdb

import "errors"

// Sentinel errors. Write failures are reported asynchronously through the
// callback set with SetOnError, so there is no write error here.
var (
	// ErrNotConnected is returned by HealthCheck after Close or when the
	// server stops answering.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed wraps the ping failure from Connect.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)

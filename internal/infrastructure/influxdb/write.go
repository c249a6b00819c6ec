package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementStatusChanges   = "status_changes"
	MeasurementDeviceTelemetry = "device_telemetry"
)

// StatusChangeSample is one classified change to record.
type StatusChangeSample struct {
	DeviceID   string
	ChangeType string
	Severity   string
	Event      string
	Message    string
	Timestamp  time.Time
}

// TelemetrySample is a snapshot of a unit's opaque telemetry.
// Nil levels are omitted from the point.
type TelemetrySample struct {
	DeviceID     string
	Status       string
	Online       bool
	BatteryLevel *float64
	WaterLevel   *float64
	Timestamp    time.Time
}

// WriteStatusChange records one change detail in the status_changes
// measurement. The write is non-blocking.
func (c *Client) WriteStatusChange(s StatusChangeSample) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(statusChangePoint(s))
}

// WriteTelemetry records a unit's telemetry levels in the device_telemetry
// measurement. The write is non-blocking.
func (c *Client) WriteTelemetry(s TelemetrySample) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(telemetryPoint(s))
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}

func statusChangePoint(s StatusChangeSample) *write.Point {
	return write.NewPoint(
		MeasurementStatusChanges,
		map[string]string{
			"device_id":   s.DeviceID,
			"change_type": s.ChangeType,
			"severity":    s.Severity,
		},
		map[string]interface{}{
			"event":   s.Event,
			"message": s.Message,
			"count":   1,
		},
		pointTime(s.Timestamp),
	)
}

func telemetryPoint(s TelemetrySample) *write.Point {
	fields := map[string]interface{}{
		"online": s.Online,
		"status": s.Status,
	}
	if s.BatteryLevel != nil {
		fields["battery_level"] = *s.BatteryLevel
	}
	if s.WaterLevel != nil {
		fields["water_level"] = *s.WaterLevel
	}

	return write.NewPoint(
		MeasurementDeviceTelemetry,
		map[string]string{"device_id": s.DeviceID},
		fields,
		pointTime(s.Timestamp),
	)
}

func pointTime(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now()
	}
	return ts
}

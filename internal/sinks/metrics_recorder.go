package sinks

import (
	"context"
	"time"

	"github.com/nerrad567/fleetwatch-core/internal/device"
	"github.com/nerrad567/fleetwatch-core/internal/infrastructure/influxdb"
)

// MeasurementFleetSummary holds periodic fleet-wide counts.
const MeasurementFleetSummary = "fleet_summary"

// MetricWriter is the InfluxDB surface used by MetricsRecorder.
// *influxdb.Client satisfies it.
type MetricWriter interface {
	WriteStatusChange(s influxdb.StatusChangeSample)
	WriteTelemetry(s influxdb.TelemetrySample)
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time)
}

// MetricsRecorder writes engine events as time-series points.
type MetricsRecorder struct {
	writer MetricWriter
	siteID string
}

// NewMetricsRecorder creates a recorder. siteID tags fleet summaries.
func NewMetricsRecorder(writer MetricWriter, siteID string) *MetricsRecorder {
	return &MetricsRecorder{writer: writer, siteID: siteID}
}

// HandleStatusChange writes one status_changes point per detail and a
// device_telemetry point for the new snapshot. It satisfies device.Listener.
func (r *MetricsRecorder) HandleStatusChange(_ context.Context, event device.StatusChangeEvent) error {
	for _, c := range event.Changes {
		r.writer.WriteStatusChange(influxdb.StatusChangeSample{
			DeviceID:   event.DeviceID,
			ChangeType: string(c.Type),
			Severity:   string(c.Severity),
			Event:      c.Event,
			Message:    c.Message,
			Timestamp:  event.Timestamp,
		})
	}

	r.writer.WriteTelemetry(influxdb.TelemetrySample{
		DeviceID:     event.DeviceID,
		Status:       string(event.NewStatus.Status),
		Online:       event.NewStatus.IsOnline,
		BatteryLevel: event.NewStatus.BatteryLevel,
		WaterLevel:   event.NewStatus.WaterLevel,
		Timestamp:    event.Timestamp,
	})
	return nil
}

// FleetSummary is a point-in-time count over the fleet.
type FleetSummary struct {
	Total     int
	Online    int
	Alerts    int
	Alarms    int
	Unhealthy int
}

// Summarise counts states. Health other than optimal counts as unhealthy.
func Summarise(states []device.DeviceState) FleetSummary {
	s := FleetSummary{Total: len(states)}
	for _, d := range states {
		if d.IsOnline {
			s.Online++
		}
		if d.HasAlert {
			s.Alerts++
		}
		if d.HasAlarm {
			s.Alarms++
		}
		if device.HealthSeverity(d.HealthStatus) != device.SeveritySuccess {
			s.Unhealthy++
		}
	}
	return s
}

// RecordSummary writes a fleet_summary point for states at time at.
func (r *MetricsRecorder) RecordSummary(states []device.DeviceState, at time.Time) FleetSummary {
	s := Summarise(states)
	r.writer.WritePointWithTime(MeasurementFleetSummary,
		map[string]string{"site_id": r.siteID},
		map[string]interface{}{
			"total":     s.Total,
			"online":    s.Online,
			"offline":   s.Total - s.Online,
			"alerts":    s.Alerts,
			"alarms":    s.Alarms,
			"unhealthy": s.Unhealthy,
		},
		at,
	)
	return s
}

// Package sinks contains device.Listener implementations that forward
// committed status change events out of the process.
//
//   - MQTTPublisher publishes each event on
//     fleetwatch/core/device/{id}/status_change and retains the new snapshot
//     on fleetwatch/core/device/{id}/state.
//   - MetricsRecorder writes one InfluxDB point per change detail and the
//     unit's telemetry levels, plus periodic fleet summaries.
//   - PrometheusExporter counts change details by type and severity and
//     reports fleet gauges at scrape time.
//
// Listeners run synchronously inside the engine's dispatch, so the sinks
// only hand data to non-blocking clients or bump counters.
package sinks

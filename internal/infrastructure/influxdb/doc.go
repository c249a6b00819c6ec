// Package influxdb provides InfluxDB connectivity for FleetWatch Core.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, non-blocking batched writes and health checks.
//
// # Measurements
//
//   - status_changes: one point per change detail (tags device_id,
//     change_type, severity; fields event, message, count)
//   - device_telemetry: opaque unit telemetry (tags device_id; fields
//     battery_level, water_level, online)
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteStatusChange(influxdb.StatusChangeSample{DeviceID: "TC001", ...})
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are asynchronous; errors
// are reported through SetOnError.
package influxdb

// Package telemetry feeds the status engine from the field.
//
// Two update sources live here:
//
//   - Ingestor subscribes to fleetwatch/telemetry/+ and applies each JSON
//     message as a partial update to the unit named in the topic.
//   - StalenessMonitor periodically marks units offline when nothing has
//     been heard from them within the offline threshold.
//
// Both only call Engine.UpdateDeviceStatus; change detection, history and
// fan-out stay in package device.
//
// # Payload
//
//	{"status": "online", "has_alert": false, "health_status": "warning",
//	 "battery_level": 41.5, "extra": {"firmware": "2.1.0"}}
//
// Every field is optional. An empty object is a heartbeat: it refreshes
// last_seen without producing an event.
package telemetry

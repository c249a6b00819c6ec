// Package mqtt provides MQTT client connectivity for FleetWatch Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support, restored after reconnect
//   - Last Will and Testament (LWT) so dashboards notice a crashed core
//
// # Topics
//
// Units publish telemetry on fleetwatch/telemetry/{device_id}. The core
// publishes every status change on fleetwatch/core/device/{id}/status_change
// and retains the latest snapshot on fleetwatch/core/device/{id}/state.
// Core liveness is retained on fleetwatch/system/status.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllTelemetry(), 1,
//	    func(topic string, payload []byte) error {
//	        id, _ := mqtt.DeviceIDFromTelemetryTopic(topic)
//	        return handle(id, payload)
//	    })
package mqtt

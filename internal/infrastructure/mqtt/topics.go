package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes.
const (
	// TopicPrefix is the root of every FleetWatch topic.
	TopicPrefix = "fleetwatch"

	// TopicPrefixTelemetry is where units report partial state updates.
	TopicPrefixTelemetry = "fleetwatch/telemetry"

	// TopicPrefixCore is where the core publishes derived state.
	TopicPrefixCore = "fleetwatch/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "fleetwatch/system"
)

// Topics provides builders for FleetWatch MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.DeviceState("TC001") // "fleetwatch/core/device/TC001/state"
type Topics struct{}

// Telemetry returns the topic a unit publishes its updates on.
//
// Example: fleetwatch/telemetry/TC001
func (Topics) Telemetry(deviceID string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixTelemetry, deviceID)
}

// AllTelemetry returns a pattern matching every unit's telemetry topic.
//
// Pattern: fleetwatch/telemetry/+
func (Topics) AllTelemetry() string {
	return TopicPrefixTelemetry + "/+"
}

// DeviceStatusChange returns the topic for a unit's status change events.
//
// Example: fleetwatch/core/device/TC001/status_change
func (Topics) DeviceStatusChange(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/status_change", TopicPrefixCore, deviceID)
}

// DeviceState returns the retained topic holding a unit's latest snapshot.
//
// Example: fleetwatch/core/device/TC001/state
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/state", TopicPrefixCore, deviceID)
}

// AllDeviceStatusChanges returns a pattern matching every status change topic.
//
// Pattern: fleetwatch/core/device/+/status_change
func (Topics) AllDeviceStatusChanges() string {
	return TopicPrefixCore + "/device/+/status_change"
}

// SystemStatus returns the core liveness topic.
//
// Example: fleetwatch/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// DeviceIDFromTelemetryTopic extracts the device ID from a telemetry topic.
// It returns false when topic is not exactly one level below the telemetry
// prefix.
func DeviceIDFromTelemetryTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, TopicPrefixTelemetry+"/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

package device

import (
	"fmt"
	"strings"
)

// Change event labels.
const (
	EventDeviceOnline  = "Device Online"
	EventDeviceOffline = "Device Offline"
	EventStatusChange  = "Status Change"
	EventNewAlert      = "New Alert"
	EventNewAlarm      = "New Alarm"
	EventHealthChange  = "Health Status Change"
)

// Detect compares two snapshots of the same unit and returns the
// significant differences.
//
// Predicates run in a fixed order and each contributes at most one detail:
// connectivity, status, alert onset, alarm onset, health. Clearing an alert
// or alarm is not reported. The result is nil when nothing changed.
//
// Detect is pure and safe for concurrent use.
func Detect(old, cur DeviceState) []ChangeDetail {
	var changes []ChangeDetail
	name := cur.Name

	if old.IsOnline != cur.IsOnline {
		if cur.IsOnline {
			changes = append(changes, ChangeDetail{
				Type:     ChangeConnectivity,
				Severity: SeverityInfo,
				Event:    EventDeviceOnline,
				Message:  fmt.Sprintf("%s is back online", name),
			})
		} else {
			changes = append(changes, ChangeDetail{
				Type:     ChangeConnectivity,
				Severity: SeverityCritical,
				Event:    EventDeviceOffline,
				Message:  fmt.Sprintf("%s has gone offline", name),
			})
		}
	}

	if old.Status != cur.Status {
		changes = append(changes, ChangeDetail{
			Type:     ChangeStatus,
			Severity: StatusSeverity(cur.Status),
			Event:    EventStatusChange,
			Message:  fmt.Sprintf("%s status changed from %s to %s", name, old.Status, cur.Status),
		})
	}

	if !old.HasAlert && cur.HasAlert {
		changes = append(changes, ChangeDetail{
			Type:     ChangeAlert,
			Severity: SeverityWarning,
			Event:    EventNewAlert,
			Message:  fmt.Sprintf("New alert raised on %s", name),
		})
	}

	if !old.HasAlarm && cur.HasAlarm {
		changes = append(changes, ChangeDetail{
			Type:     ChangeAlarm,
			Severity: SeverityCritical,
			Event:    EventNewAlarm,
			Message:  fmt.Sprintf("Alarm triggered on %s", name),
		})
	}

	if old.HealthStatus != cur.HealthStatus {
		changes = append(changes, ChangeDetail{
			Type:     ChangeHealth,
			Severity: HealthSeverity(cur.HealthStatus),
			Event:    EventHealthChange,
			Message:  fmt.Sprintf("%s health changed from %s to %s", name, old.HealthStatus, cur.HealthStatus),
		})
	}

	return changes
}

// StatusSeverity maps a status value to the severity of a status change
// into it. Unknown values map to info.
func StatusSeverity(s Status) Severity {
	switch s {
	case StatusOffline, StatusError:
		return SeverityCritical
	case StatusMaintenance:
		return SeverityWarning
	case StatusOnline:
		return SeveritySuccess
	default:
		return SeverityInfo
	}
}

// HealthSeverity maps a health value, case-insensitively, to a severity.
// Unknown values map to info.
func HealthSeverity(h HealthStatus) Severity {
	switch HealthStatus(strings.ToLower(string(h))) {
	case HealthCritical:
		return SeverityCritical
	case HealthWarning:
		return SeverityWarning
	case HealthOptimal:
		return SeveritySuccess
	default:
		return SeverityInfo
	}
}

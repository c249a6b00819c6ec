package device

import (
	"regexp"
	"strconv"
	"time"
)

const (
	// RoleAdmin sees every unit in the notification feed.
	RoleAdmin = "admin"

	// DefaultNotificationWindow is the number of recent events projected
	// when no window is given.
	DefaultNotificationWindow = 20

	// NotificationTimeFormat is the layout of Notification.Timestamp (UTC).
	NotificationTimeFormat = "2006-01-02 15:04:05"

	// restrictedUnitThreshold is the highest TC unit number visible to
	// non-admin roles.
	restrictedUnitThreshold = 6
)

var unitIDPattern = regexp.MustCompile(`^TC(\d+)$`)

// CanView reports whether role may see notifications for deviceID.
//
// Admins see everything. Other roles cannot see units numbered TC007 and
// above. IDs outside the TC<digits> scheme are visible to all roles.
func CanView(role, deviceID string) bool {
	if role == RoleAdmin {
		return true
	}
	m := unitIDPattern.FindStringSubmatch(deviceID)
	if m == nil {
		return true
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		// Only overflow reaches here; such a number is above the threshold.
		return false
	}
	return n <= restrictedUnitThreshold
}

// Project turns events (newest first) into display-ready notifications for
// role. Events for units the role cannot view are skipped entirely; every
// detail of a visible event yields one notification. IDs are numbered from 1
// within this call.
//
// Project does not modify events.
func Project(events []StatusChangeEvent, role string) []Notification {
	out := make([]Notification, 0, len(events))
	next := 1

	for _, ev := range events {
		if !CanView(role, ev.DeviceID) {
			continue
		}
		ts := ev.Timestamp.UTC().Truncate(time.Second)
		formatted := ts.Format(NotificationTimeFormat)

		for _, detail := range ev.Changes {
			typ := NotificationAlert
			if detail.Type == ChangeAlarm {
				typ = NotificationAlarm
			}
			out = append(out, Notification{
				ID:        next,
				Type:      typ,
				Message:   detail.Message,
				Timestamp: formatted,
				AlertData: AlertData{
					Severity:   detail.Severity,
					Title:      detail.Event,
					Message:    detail.Message,
					Timestamp:  ts,
					DeviceID:   ev.DeviceID,
					DeviceName: ev.DeviceName,
				},
			})
			next++
		}
	}
	return out
}

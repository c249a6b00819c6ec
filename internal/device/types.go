package device

import "time"

// Status is the operational state reported by a unit.
//
// Values outside the known set are permitted and treated as "other".
type Status string

// Status constants.
const (
	StatusOnline      Status = "online"
	StatusOffline     Status = "offline"
	StatusMaintenance Status = "maintenance"
	StatusError       Status = "error"
)

// IsOnline reports whether the status counts as connected.
// A unit under maintenance is still reachable.
func (s Status) IsOnline() bool {
	return s == StatusOnline || s == StatusMaintenance
}

// HealthStatus is the unit's self-reported health. Compared case-insensitively
// when mapped to a severity.
type HealthStatus string

// HealthStatus constants.
const (
	HealthOptimal  HealthStatus = "optimal"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
)

// DeviceState is the last-known state of one monitored unit.
//
// IsOnline is derived from Status and is recomputed by the engine on every
// update; it is never taken from input.
type DeviceState struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// Operational state
	Status       Status       `json:"status"`
	HasAlert     bool         `json:"has_alert"`
	HasAlarm     bool         `json:"has_alarm"`
	HealthStatus HealthStatus `json:"health_status"`
	IsOnline     bool         `json:"is_online"`

	// Timestamps (UTC)
	LastSeen         time.Time `json:"last_seen"`
	LastStatusChange time.Time `json:"last_status_change"`

	// Telemetry carried opaquely; the engine never interprets these.
	BatteryLevel *float64       `json:"battery_level,omitempty"`
	WaterLevel   *float64       `json:"water_level,omitempty"`
	SerialNumber string         `json:"serial_number,omitempty"`
	Location     string         `json:"location,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// DeepCopy creates a complete independent copy of the DeviceState.
func (d *DeviceState) DeepCopy() *DeviceState {
	if d == nil {
		return nil
	}

	cpy := *d
	cpy.BatteryLevel = copyFloat(d.BatteryLevel)
	cpy.WaterLevel = copyFloat(d.WaterLevel)
	cpy.Extra = deepCopyMap(d.Extra)
	return &cpy
}

// Seed is the initial snapshot of one unit, supplied by the inventory.
type Seed struct {
	ID           string
	Name         string
	Status       Status
	HasAlert     bool
	HasAlarm     bool
	HealthStatus HealthStatus
	BatteryLevel *float64
	WaterLevel   *float64
	SerialNumber string
	Location     string
	Extra        map[string]any
}

// state builds the initial DeviceState for the seed at time now.
func (s Seed) state(now time.Time) *DeviceState {
	return &DeviceState{
		ID:               s.ID,
		Name:             s.Name,
		Status:           s.Status,
		HasAlert:         s.HasAlert,
		HasAlarm:         s.HasAlarm,
		HealthStatus:     s.HealthStatus,
		IsOnline:         s.Status.IsOnline(),
		LastSeen:         now,
		LastStatusChange: now,
		BatteryLevel:     copyFloat(s.BatteryLevel),
		WaterLevel:       copyFloat(s.WaterLevel),
		SerialNumber:     s.SerialNumber,
		Location:         s.Location,
		Extra:            deepCopyMap(s.Extra),
	}
}

// Update is a partial set of fields to merge over a unit's snapshot.
// Nil fields are left unchanged. Extra keys are merged one by one.
type Update struct {
	Name         *string        `json:"name,omitempty"`
	Status       *Status        `json:"status,omitempty"`
	HasAlert     *bool          `json:"has_alert,omitempty"`
	HasAlarm     *bool          `json:"has_alarm,omitempty"`
	HealthStatus *HealthStatus  `json:"health_status,omitempty"`
	BatteryLevel *float64       `json:"battery_level,omitempty"`
	WaterLevel   *float64       `json:"water_level,omitempty"`
	SerialNumber *string        `json:"serial_number,omitempty"`
	Location     *string        `json:"location,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// WithStatus returns a copy of u that sets Status.
func (u Update) WithStatus(s Status) Update {
	u.Status = &s
	return u
}

// WithAlert returns a copy of u that sets HasAlert.
func (u Update) WithAlert(v bool) Update {
	u.HasAlert = &v
	return u
}

// WithAlarm returns a copy of u that sets HasAlarm.
func (u Update) WithAlarm(v bool) Update {
	u.HasAlarm = &v
	return u
}

// WithHealth returns a copy of u that sets HealthStatus.
func (u Update) WithHealth(h HealthStatus) Update {
	u.HealthStatus = &h
	return u
}

// WithBatteryLevel returns a copy of u that sets BatteryLevel.
func (u Update) WithBatteryLevel(v float64) Update {
	u.BatteryLevel = &v
	return u
}

// WithWaterLevel returns a copy of u that sets WaterLevel.
func (u Update) WithWaterLevel(v float64) Update {
	u.WaterLevel = &v
	return u
}

// IsEmpty reports whether the update carries no fields at all.
func (u Update) IsEmpty() bool {
	return u.Name == nil && u.Status == nil && u.HasAlert == nil && u.HasAlarm == nil &&
		u.HealthStatus == nil && u.BatteryLevel == nil && u.WaterLevel == nil &&
		u.SerialNumber == nil && u.Location == nil && len(u.Extra) == 0
}

// applyTo merges u over d in place.
func (u Update) applyTo(d *DeviceState) {
	if u.Name != nil {
		d.Name = *u.Name
	}
	if u.Status != nil {
		d.Status = *u.Status
	}
	if u.HasAlert != nil {
		d.HasAlert = *u.HasAlert
	}
	if u.HasAlarm != nil {
		d.HasAlarm = *u.HasAlarm
	}
	if u.HealthStatus != nil {
		d.HealthStatus = *u.HealthStatus
	}
	if u.BatteryLevel != nil {
		d.BatteryLevel = copyFloat(u.BatteryLevel)
	}
	if u.WaterLevel != nil {
		d.WaterLevel = copyFloat(u.WaterLevel)
	}
	if u.SerialNumber != nil {
		d.SerialNumber = *u.SerialNumber
	}
	if u.Location != nil {
		d.Location = *u.Location
	}
	if len(u.Extra) > 0 {
		if d.Extra == nil {
			d.Extra = make(map[string]any, len(u.Extra))
		}
		for k, v := range u.Extra {
			d.Extra[k] = deepCopyValue(v)
		}
	}
}

// ChangeType classifies a ChangeDetail.
type ChangeType string

// ChangeType constants, in detection order.
const (
	ChangeConnectivity ChangeType = "connectivity"
	ChangeStatus       ChangeType = "status"
	ChangeAlert        ChangeType = "alert"
	ChangeAlarm        ChangeType = "alarm"
	ChangeHealth       ChangeType = "health"
)

// Severity grades a ChangeDetail for display.
type Severity string

// Severity constants.
const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeveritySuccess  Severity = "success"
	SeverityInfo     Severity = "info"
)

// ChangeDetail is one classified difference between two snapshots.
type ChangeDetail struct {
	Type     ChangeType `json:"type"`
	Severity Severity   `json:"severity"`
	Event    string     `json:"event"`
	Message  string     `json:"message"`
}

// StatusChangeEvent bundles every ChangeDetail produced by one update,
// with the snapshots before and after it.
//
// Events are immutable once created. Every reader receives its own copy.
type StatusChangeEvent struct {
	DeviceID   string         `json:"device_id"`
	DeviceName string         `json:"device_name"`
	Timestamp  time.Time      `json:"timestamp"`
	Changes    []ChangeDetail `json:"changes"`
	OldStatus  DeviceState    `json:"old_status"`
	NewStatus  DeviceState    `json:"new_status"`
}

// DeepCopy creates a complete independent copy of the event.
func (e *StatusChangeEvent) DeepCopy() *StatusChangeEvent {
	if e == nil {
		return nil
	}

	cpy := *e
	if e.Changes != nil {
		cpy.Changes = make([]ChangeDetail, len(e.Changes))
		copy(cpy.Changes, e.Changes)
	}
	cpy.OldStatus = *e.OldStatus.DeepCopy()
	cpy.NewStatus = *e.NewStatus.DeepCopy()
	return &cpy
}

// HasChange reports whether the event contains a detail of type t.
func (e *StatusChangeEvent) HasChange(t ChangeType) bool {
	for _, c := range e.Changes {
		if c.Type == t {
			return true
		}
	}
	return false
}

// UpdateOutcome is the result class of an UpdateDeviceStatus call.
type UpdateOutcome int

// UpdateOutcome values.
const (
	// OutcomeUpdated means the snapshot changed in a way the detector reports.
	OutcomeUpdated UpdateOutcome = iota
	// OutcomeUnchanged means no event was produced: either the committed
	// snapshot had no significant change or a conditional update was skipped.
	OutcomeUnchanged
	// OutcomeNotFound means the device id is not registered.
	OutcomeNotFound
)

// String returns the outcome name used in logs and API responses.
func (o UpdateOutcome) String() string {
	switch o {
	case OutcomeUpdated:
		return "updated"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// UpdateResult is returned by Engine.UpdateDeviceStatus.
// Event is set only when Outcome is OutcomeUpdated.
type UpdateResult struct {
	Outcome UpdateOutcome
	Event   *StatusChangeEvent
}

// NotificationType is the coarse bucket shown by the dashboard.
type NotificationType string

// NotificationType constants.
const (
	NotificationAlarm NotificationType = "alarm"
	NotificationAlert NotificationType = "alert"
)

// Notification is a display-ready entry derived from one ChangeDetail.
type Notification struct {
	// ID is sequential within one projection call, starting at 1.
	ID        int              `json:"id"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	Timestamp string           `json:"timestamp"`
	AlertData AlertData        `json:"alertData"`
}

// AlertData is the detail payload attached to a Notification.
type AlertData struct {
	Severity   Severity  `json:"severity"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	DeviceID   string    `json:"deviceId"`
	DeviceName string    `json:"deviceName"`
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v
	}
}

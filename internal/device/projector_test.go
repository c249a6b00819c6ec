package device

import (
	"testing"
	"time"
)

func TestCanView(t *testing.T) {
	tests := []struct {
		name     string
		role     string
		deviceID string
		want     bool
	}{
		{"user sees TC001", "user", "TC001", true},
		{"user sees TC006", "user", "TC006", true},
		{"user cannot see TC007", "user", "TC007", false},
		{"user cannot see TC12", "user", "TC12", false},
		{"viewer cannot see TC100", "viewer", "TC100", false},
		{"admin sees TC007", "admin", "TC007", true},
		{"admin sees TC999", "admin", "TC999", true},
		{"non-matching id always visible", "user", "PUMP-42", true},
		{"lowercase prefix not matched", "user", "tc009", true},
		{"suffix not matched", "user", "TC009a", true},
		{"empty role is not admin", "", "TC008", false},
		{"role comparison is exact", "Admin", "TC008", false},
		{"overflowing number hidden", "user", "TC99999999999999999999999", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanView(tt.role, tt.deviceID); got != tt.want {
				t.Errorf("CanView(%q, %q) = %v, want %v", tt.role, tt.deviceID, got, tt.want)
			}
		})
	}
}

func TestProject(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)
	events := []StatusChangeEvent{
		{
			DeviceID:   "TC008",
			DeviceName: "Unit 8",
			Timestamp:  ts,
			Changes: []ChangeDetail{
				{Type: ChangeAlarm, Severity: SeverityCritical, Event: EventNewAlarm, Message: "alarm on 8"},
			},
		},
		{
			DeviceID:   "TC001",
			DeviceName: "Unit 1",
			Timestamp:  ts,
			Changes: []ChangeDetail{
				{Type: ChangeConnectivity, Severity: SeverityCritical, Event: EventDeviceOffline, Message: "offline"},
				{Type: ChangeAlarm, Severity: SeverityCritical, Event: EventNewAlarm, Message: "alarm on 1"},
			},
		},
	}

	t.Run("user is filtered per device", func(t *testing.T) {
		got := Project(events, "user")
		if len(got) != 2 {
			t.Fatalf("Project(user) len = %d, want 2", len(got))
		}
		for i, n := range got {
			if n.ID != i+1 {
				t.Errorf("notification %d ID = %d, want %d", i, n.ID, i+1)
			}
			if n.AlertData.DeviceID != "TC001" {
				t.Errorf("notification %d for %q, want TC001", i, n.AlertData.DeviceID)
			}
		}
		if got[0].Type != NotificationAlert {
			t.Errorf("connectivity detail type = %q, want alert", got[0].Type)
		}
		if got[1].Type != NotificationAlarm {
			t.Errorf("alarm detail type = %q, want alarm", got[1].Type)
		}
	})

	t.Run("admin sees everything", func(t *testing.T) {
		got := Project(events, RoleAdmin)
		if len(got) != 3 {
			t.Fatalf("Project(admin) len = %d, want 3", len(got))
		}
		if got[0].AlertData.DeviceID != "TC008" || got[0].ID != 1 {
			t.Errorf("first notification = %+v, want TC008 with ID 1", got[0])
		}
	})

	t.Run("formatting", func(t *testing.T) {
		n := Project(events, "user")[0]
		if n.Timestamp != "2026-03-14 09:26:53" {
			t.Errorf("Timestamp = %q, want %q", n.Timestamp, "2026-03-14 09:26:53")
		}
		if n.Message != "offline" || n.AlertData.Message != "offline" {
			t.Errorf("Message = %q, AlertData.Message = %q", n.Message, n.AlertData.Message)
		}
		if n.AlertData.Title != EventDeviceOffline {
			t.Errorf("AlertData.Title = %q, want %q", n.AlertData.Title, EventDeviceOffline)
		}
		if n.AlertData.Severity != SeverityCritical || n.AlertData.DeviceName != "Unit 1" {
			t.Errorf("AlertData = %+v", n.AlertData)
		}
	})

	t.Run("ids restart per call", func(t *testing.T) {
		first := Project(events, RoleAdmin)
		second := Project(events, RoleAdmin)
		if first[0].ID != 1 || second[0].ID != 1 {
			t.Errorf("IDs not call-scoped: %d, %d", first[0].ID, second[0].ID)
		}
	})
}

func TestProject_NonUTCTimestamp(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	events := []StatusChangeEvent{{
		DeviceID:  "TC002",
		Timestamp: time.Date(2026, 3, 14, 11, 0, 0, 0, loc),
		Changes:   []ChangeDetail{{Type: ChangeStatus}},
	}}

	got := Project(events, "user")
	if got[0].Timestamp != "2026-03-14 09:00:00" {
		t.Errorf("Timestamp = %q, want UTC rendering", got[0].Timestamp)
	}
}

func TestProject_Empty(t *testing.T) {
	if got := Project(nil, "user"); len(got) != 0 {
		t.Errorf("Project(nil) = %v, want empty", got)
	}
}

package device

import "testing"

func baseState() DeviceState {
	return DeviceState{
		ID:           "TC001",
		Name:         "Unit 1",
		Status:       StatusOnline,
		HealthStatus: HealthOptimal,
		IsOnline:     true,
	}
}

func TestDetect_NoChanges(t *testing.T) {
	s := baseState()
	if got := Detect(s, s); len(got) != 0 {
		t.Errorf("Detect() on identical states = %v, want empty", got)
	}
}

func TestDetect_OnlineToOffline(t *testing.T) {
	old := baseState()
	cur := old
	cur.Status = StatusOffline
	cur.IsOnline = false

	got := Detect(old, cur)
	if len(got) != 2 {
		t.Fatalf("Detect() returned %d changes, want 2: %v", len(got), got)
	}
	if got[0].Type != ChangeConnectivity || got[0].Severity != SeverityCritical || got[0].Event != EventDeviceOffline {
		t.Errorf("changes[0] = %+v, want critical connectivity %q", got[0], EventDeviceOffline)
	}
	if got[1].Type != ChangeStatus || got[1].Severity != SeverityCritical || got[1].Event != EventStatusChange {
		t.Errorf("changes[1] = %+v, want critical status change", got[1])
	}
}

func TestDetect_BackOnline(t *testing.T) {
	old := baseState()
	old.Status = StatusOffline
	old.IsOnline = false
	cur := baseState()

	got := Detect(old, cur)
	if len(got) != 2 {
		t.Fatalf("Detect() returned %d changes, want 2", len(got))
	}
	if got[0].Severity != SeverityInfo || got[0].Event != EventDeviceOnline {
		t.Errorf("changes[0] = %+v, want info %q", got[0], EventDeviceOnline)
	}
	if got[1].Severity != SeveritySuccess {
		t.Errorf("status severity = %q, want success", got[1].Severity)
	}
}

func TestDetect_StatusWithoutConnectivity(t *testing.T) {
	// online -> maintenance keeps IsOnline true.
	old := baseState()
	cur := old
	cur.Status = StatusMaintenance

	got := Detect(old, cur)
	if len(got) != 1 {
		t.Fatalf("Detect() returned %d changes, want 1: %v", len(got), got)
	}
	if got[0].Type != ChangeStatus || got[0].Severity != SeverityWarning {
		t.Errorf("changes[0] = %+v, want warning status change", got[0])
	}
}

func TestDetect_AlertAndAlarmOnsetOnly(t *testing.T) {
	old := baseState()
	cur := old
	cur.HasAlert = true
	cur.HasAlarm = true

	got := Detect(old, cur)
	if len(got) != 2 {
		t.Fatalf("Detect() returned %d changes, want 2", len(got))
	}
	if got[0].Type != ChangeAlert || got[0].Severity != SeverityWarning || got[0].Event != EventNewAlert {
		t.Errorf("changes[0] = %+v, want warning alert", got[0])
	}
	if got[1].Type != ChangeAlarm || got[1].Severity != SeverityCritical || got[1].Event != EventNewAlarm {
		t.Errorf("changes[1] = %+v, want critical alarm", got[1])
	}

	// Clearing is not reported.
	if cleared := Detect(cur, old); len(cleared) != 0 {
		t.Errorf("Detect() on cleared alert/alarm = %v, want empty", cleared)
	}
}

func TestDetect_FullOrder(t *testing.T) {
	old := baseState()
	cur := DeviceState{
		ID:           "TC001",
		Name:         "Unit 1",
		Status:       StatusError,
		HasAlert:     true,
		HasAlarm:     true,
		HealthStatus: HealthCritical,
		IsOnline:     false,
	}

	got := Detect(old, cur)
	want := []ChangeType{ChangeConnectivity, ChangeStatus, ChangeAlert, ChangeAlarm, ChangeHealth}
	if len(got) != len(want) {
		t.Fatalf("Detect() returned %d changes, want %d", len(got), len(want))
	}
	for i, typ := range want {
		if got[i].Type != typ {
			t.Errorf("changes[%d].Type = %q, want %q", i, got[i].Type, typ)
		}
		if got[i].Message == "" {
			t.Errorf("changes[%d].Message is empty", i)
		}
	}
}

func TestDetect_HealthCaseInsensitiveSeverity(t *testing.T) {
	old := baseState()
	cur := old
	cur.HealthStatus = "WARNING"

	got := Detect(old, cur)
	if len(got) != 1 {
		t.Fatalf("Detect() returned %d changes, want 1", len(got))
	}
	if got[0].Severity != SeverityWarning {
		t.Errorf("health severity = %q, want warning", got[0].Severity)
	}
}

func TestStatusSeverity(t *testing.T) {
	tests := []struct {
		status Status
		want   Severity
	}{
		{StatusOffline, SeverityCritical},
		{StatusError, SeverityCritical},
		{StatusMaintenance, SeverityWarning},
		{StatusOnline, SeveritySuccess},
		{"standby", SeverityInfo},
		{"", SeverityInfo},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := StatusSeverity(tt.status); got != tt.want {
				t.Errorf("StatusSeverity(%q) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestHealthSeverity(t *testing.T) {
	tests := []struct {
		health HealthStatus
		want   Severity
	}{
		{HealthCritical, SeverityCritical},
		{"Critical", SeverityCritical},
		{HealthWarning, SeverityWarning},
		{HealthOptimal, SeveritySuccess},
		{"OPTIMAL", SeveritySuccess},
		{"degraded", SeverityInfo},
	}

	for _, tt := range tests {
		t.Run(string(tt.health), func(t *testing.T) {
			if got := HealthSeverity(tt.health); got != tt.want {
				t.Errorf("HealthSeverity(%q) = %q, want %q", tt.health, got, tt.want)
			}
		})
	}
}

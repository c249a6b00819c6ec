package sinks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/fleetwatch-core/internal/device"
	"github.com/nerrad567/fleetwatch-core/internal/infrastructure/influxdb"
)

type published struct {
	topic    string
	payload  any
	retained bool
}

type fakePublisher struct {
	mu     sync.Mutex
	msgs   []published
	failOn string
}

func (f *fakePublisher) PublishJSON(topic string, v any, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if topic == f.failOn {
		return errors.New("broker unavailable")
	}
	f.msgs = append(f.msgs, published{topic: topic, payload: v, retained: retained})
	return nil
}

type point struct {
	measurement string
	tags        map[string]string
	fields      map[string]interface{}
}

type fakeWriter struct {
	changes   []influxdb.StatusChangeSample
	telemetry []influxdb.TelemetrySample
	points    []point
}

func (f *fakeWriter) WriteStatusChange(s influxdb.StatusChangeSample) {
	f.changes = append(f.changes, s)
}

func (f *fakeWriter) WriteTelemetry(s influxdb.TelemetrySample) {
	f.telemetry = append(f.telemetry, s)
}

func (f *fakeWriter) WritePointWithTime(m string, tags map[string]string, fields map[string]interface{}, _ time.Time) {
	f.points = append(f.points, point{measurement: m, tags: tags, fields: fields})
}

var eventTime = time.Date(2026, 1, 18, 12, 0, 0, 0, time.UTC)

func offlineEvent() device.StatusChangeEvent {
	battery := 33.0
	return device.StatusChangeEvent{
		DeviceID:   "TC001",
		DeviceName: "Unit 1",
		Timestamp:  eventTime,
		Changes: []device.ChangeDetail{
			{Type: device.ChangeConnectivity, Severity: device.SeverityCritical, Event: device.EventDeviceOffline},
			{Type: device.ChangeStatus, Severity: device.SeverityCritical, Event: device.EventStatusChange},
		},
		OldStatus: device.DeviceState{ID: "TC001", Status: device.StatusOnline, IsOnline: true},
		NewStatus: device.DeviceState{ID: "TC001", Status: device.StatusOffline, BatteryLevel: &battery},
	}
}

func TestMQTTPublisher_HandleStatusChange(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewMQTTPublisher(pub, nil)

	if err := sink.HandleStatusChange(context.Background(), offlineEvent()); err != nil {
		t.Fatalf("HandleStatusChange() error = %v", err)
	}
	if len(pub.msgs) != 2 {
		t.Fatalf("published %d messages, want 2", len(pub.msgs))
	}

	change := pub.msgs[0]
	if change.topic != "fleetwatch/core/device/TC001/status_change" || change.retained {
		t.Errorf("status change message = %+v", change)
	}
	if ev, ok := change.payload.(device.StatusChangeEvent); !ok || len(ev.Changes) != 2 {
		t.Errorf("status change payload = %#v", change.payload)
	}

	state := pub.msgs[1]
	if state.topic != "fleetwatch/core/device/TC001/state" || !state.retained {
		t.Errorf("state message = %+v", state)
	}
	if s, ok := state.payload.(device.DeviceState); !ok || s.Status != device.StatusOffline {
		t.Errorf("state payload = %#v", state.payload)
	}
}

func TestMQTTPublisher_ReportsFailures(t *testing.T) {
	pub := &fakePublisher{failOn: "fleetwatch/core/device/TC001/status_change"}
	sink := NewMQTTPublisher(pub, nil)

	err := sink.HandleStatusChange(context.Background(), offlineEvent())
	if err == nil {
		t.Fatal("HandleStatusChange() should report the failed publish")
	}
	// The retained state is still attempted.
	if len(pub.msgs) != 1 || pub.msgs[0].topic != "fleetwatch/core/device/TC001/state" {
		t.Errorf("published = %+v", pub.msgs)
	}
}

func TestMQTTPublisher_PublishSnapshot(t *testing.T) {
	pub := &fakePublisher{failOn: "fleetwatch/core/device/TC002/state"}
	sink := NewMQTTPublisher(pub, nil)

	states := []device.DeviceState{{ID: "TC001"}, {ID: "TC002"}, {ID: "TC003"}}
	if err := sink.PublishSnapshot(states); err == nil {
		t.Error("PublishSnapshot() should report the TC002 failure")
	}
	if len(pub.msgs) != 2 {
		t.Errorf("published %d, want 2", len(pub.msgs))
	}
	for _, m := range pub.msgs {
		if !m.retained {
			t.Errorf("%s not retained", m.topic)
		}
	}
}

func TestMQTTPublisher_AsEngineListener(t *testing.T) {
	pub := &fakePublisher{}
	engine := device.NewEngine()
	if err := engine.Initialize([]device.Seed{{ID: "TC001", Status: device.StatusOnline, HealthStatus: device.HealthOptimal}}); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Subscribe(NewMQTTPublisher(pub, nil)); err != nil {
		t.Fatal(err)
	}

	if _, err := engine.UpdateDeviceStatus(context.Background(), "TC001", device.Update{}.WithAlert(true)); err != nil {
		t.Fatal(err)
	}
	if len(pub.msgs) != 2 {
		t.Errorf("published %d messages, want 2", len(pub.msgs))
	}
}

func TestMetricsRecorder_HandleStatusChange(t *testing.T) {
	w := &fakeWriter{}
	rec := NewMetricsRecorder(w, "fleet-001")

	if err := rec.HandleStatusChange(context.Background(), offlineEvent()); err != nil {
		t.Fatal(err)
	}

	if len(w.changes) != 2 {
		t.Fatalf("wrote %d change samples, want 2", len(w.changes))
	}
	if w.changes[0].ChangeType != "connectivity" || w.changes[0].Severity != "critical" ||
		w.changes[0].Event != device.EventDeviceOffline || !w.changes[0].Timestamp.Equal(eventTime) {
		t.Errorf("changes[0] = %+v", w.changes[0])
	}

	if len(w.telemetry) != 1 {
		t.Fatalf("wrote %d telemetry samples, want 1", len(w.telemetry))
	}
	tel := w.telemetry[0]
	if tel.Status != "offline" || tel.Online || tel.BatteryLevel == nil || *tel.BatteryLevel != 33 {
		t.Errorf("telemetry = %+v", tel)
	}
}

func TestMetricsRecorder_RecordSummary(t *testing.T) {
	w := &fakeWriter{}
	rec := NewMetricsRecorder(w, "fleet-001")

	states := []device.DeviceState{
		{ID: "TC001", IsOnline: true, HealthStatus: device.HealthOptimal},
		{ID: "TC002", HasAlert: true, HealthStatus: device.HealthWarning},
		{ID: "TC003", IsOnline: true, HasAlarm: true, HealthStatus: "CRITICAL"},
	}
	got := rec.RecordSummary(states, eventTime)

	want := FleetSummary{Total: 3, Online: 2, Alerts: 1, Alarms: 1, Unhealthy: 2}
	if got != want {
		t.Errorf("RecordSummary() = %+v, want %+v", got, want)
	}
	if len(w.points) != 1 {
		t.Fatalf("wrote %d points, want 1", len(w.points))
	}
	p := w.points[0]
	if p.measurement != MeasurementFleetSummary || p.tags["site_id"] != "fleet-001" {
		t.Errorf("point = %+v", p)
	}
	if p.fields["offline"] != 1 || p.fields["online"] != 2 {
		t.Errorf("fields = %v", p.fields)
	}
}

// stalledPublisher simulates a broker that takes delay to acknowledge.
type stalledPublisher struct {
	fakePublisher
	delay time.Duration
}

func (s *stalledPublisher) PublishJSON(topic string, v any, retained bool) error {
	time.Sleep(s.delay)
	return s.fakePublisher.PublishJSON(topic, v, retained)
}

func TestMQTTPublisher_QueuedDoesNotStallEngine(t *testing.T) {
	pub := &stalledPublisher{delay: 250 * time.Millisecond}
	engine := device.NewEngine()
	err := engine.Initialize([]device.Seed{
		{ID: "TC001", Status: device.StatusOnline, HealthStatus: device.HealthOptimal},
		{ID: "TC002", Status: device.StatusOnline, HealthStatus: device.HealthOptimal},
	})
	if err != nil {
		t.Fatal(err)
	}

	q, err := device.NewQueuedListener(NewMQTTPublisher(pub, nil), device.QueueOptions{Name: "mqtt"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Subscribe(q); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if _, err := engine.UpdateDeviceStatus(ctx, "TC001", device.Update{}.WithStatus(device.StatusOffline)); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if _, err := engine.UpdateDeviceStatus(ctx, "TC002", device.Update{}); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("heartbeat for TC002 took %v behind a stalled broker", elapsed)
	}

	q.Stop()
	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.msgs) != 2 {
		t.Errorf("published %d messages after drain, want 2", len(pub.msgs))
	}
}

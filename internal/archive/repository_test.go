package archive

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nerrad567/fleetwatch-core/internal/device"
	"github.com/nerrad567/fleetwatch-core/internal/infrastructure/database"
	_ "github.com/nerrad567/fleetwatch-core/migrations" // registers the schema
)

var baseTime = time.Date(2026, 1, 18, 12, 0, 0, 0, time.UTC)

// openTestRepository returns a repository over a migrated in-memory database.
func openTestRepository(t *testing.T) *Repository {
	t.Helper()

	db, err := database.Open(database.Config{Path: database.MemoryPath, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	repo := NewRepository(db.DB)
	repo.SetClock(func() time.Time { return baseTime })
	return repo
}

func testEvent(id string, at time.Time, status device.Status) device.StatusChangeEvent {
	return device.StatusChangeEvent{
		DeviceID:   id,
		DeviceName: "Unit " + id,
		Timestamp:  at,
		Changes: []device.ChangeDetail{{
			Type:     device.ChangeStatus,
			Severity: device.StatusSeverity(status),
			Event:    device.EventStatusChange,
			Message:  fmt.Sprintf("%s status changed to %s", id, status),
		}},
		OldStatus: device.DeviceState{ID: id, Status: device.StatusOnline, IsOnline: true},
		NewStatus: device.DeviceState{ID: id, Status: status, IsOnline: status.IsOnline()},
	}
}

func TestRecordAndListByDevice(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	for i, status := range []device.Status{device.StatusOffline, device.StatusOnline, device.StatusError} {
		if err := repo.Record(ctx, testEvent("TC001", baseTime.Add(time.Duration(i)*time.Second), status)); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	if err := repo.Record(ctx, testEvent("TC002", baseTime, device.StatusMaintenance)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	entries, err := repo.ListByDevice(ctx, "TC001", 0)
	if err != nil {
		t.Fatalf("ListByDevice() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("ListByDevice() len = %d, want 3", len(entries))
	}

	wantOrder := []device.Status{device.StatusError, device.StatusOnline, device.StatusOffline}
	for i, want := range wantOrder {
		if entries[i].NewStatus.Status != want {
			t.Errorf("entries[%d].NewStatus.Status = %q, want %q", i, entries[i].NewStatus.Status, want)
		}
	}

	first := entries[0]
	if first.ID == "" || first.DeviceName != "Unit TC001" {
		t.Errorf("entry identity = %q / %q", first.ID, first.DeviceName)
	}
	if len(first.Changes) != 1 || first.Changes[0].Severity != device.SeverityCritical {
		t.Errorf("entry changes = %+v", first.Changes)
	}
	if !first.OccurredAt.Equal(baseTime.Add(2 * time.Second)) {
		t.Errorf("OccurredAt = %v", first.OccurredAt)
	}
	if !first.CreatedAt.Equal(baseTime) {
		t.Errorf("CreatedAt = %v, want %v", first.CreatedAt, baseTime)
	}

	limited, err := repo.ListByDevice(ctx, "TC001", 1)
	if err != nil {
		t.Fatalf("ListByDevice(limit 1) error = %v", err)
	}
	if len(limited) != 1 || limited[0].ID != first.ID {
		t.Errorf("ListByDevice(limit 1) = %+v", limited)
	}

	count, err := repo.Count(ctx)
	if err != nil || count != 4 {
		t.Errorf("Count() = %d, %v; want 4", count, err)
	}
}

func TestListByDevice_SubSecondOrdering(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	// 12:00:00 and 12:00:00.5 must sort by time, not by string length.
	if err := repo.Record(ctx, testEvent("TC001", baseTime, device.StatusOffline)); err != nil {
		t.Fatal(err)
	}
	if err := repo.Record(ctx, testEvent("TC001", baseTime.Add(500*time.Millisecond), device.StatusOnline)); err != nil {
		t.Fatal(err)
	}

	entries, err := repo.ListByDevice(ctx, "TC001", 10)
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].NewStatus.Status != device.StatusOnline {
		t.Errorf("newest entry = %q, want online", entries[0].NewStatus.Status)
	}
}

func TestListByDevice_Errors(t *testing.T) {
	repo := openTestRepository(t)

	if _, err := repo.ListByDevice(context.Background(), "", 10); !errors.Is(err, ErrDeviceIDRequired) {
		t.Errorf("ListByDevice(\"\") error = %v, want ErrDeviceIDRequired", err)
	}
	if err := repo.Record(context.Background(), device.StatusChangeEvent{}); !errors.Is(err, ErrDeviceIDRequired) {
		t.Errorf("Record(empty) error = %v, want ErrDeviceIDRequired", err)
	}

	entries, err := repo.ListByDevice(context.Background(), "TC404", 10)
	if err != nil || len(entries) != 0 {
		t.Errorf("ListByDevice(unknown) = %v, %v; want empty", entries, err)
	}
}

func TestListByDevice_CapsLimit(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	for i := range MaxListLimit + 5 {
		if err := repo.Record(ctx, testEvent("TC001", baseTime.Add(time.Duration(i)*time.Millisecond), device.StatusOffline)); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		limit int
		want  int
	}{
		{0, DefaultListLimit},
		{-3, DefaultListLimit},
		{10, 10},
		{1000, MaxListLimit},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("limit %d", tt.limit), func(t *testing.T) {
			entries, err := repo.ListByDevice(ctx, "TC001", tt.limit)
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != tt.want {
				t.Errorf("ListByDevice(%d) len = %d, want %d", tt.limit, len(entries), tt.want)
			}
		})
	}
}

func TestPrune(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	old := baseTime.Add(-48 * time.Hour)
	recent := baseTime.Add(-time.Hour)
	for _, at := range []time.Time{old, old.Add(time.Minute), recent} {
		if err := repo.Record(ctx, testEvent("TC001", at, device.StatusOffline)); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := repo.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("Prune() deleted %d, want 2", deleted)
	}

	entries, err := repo.ListByDevice(ctx, "TC001", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || !entries[0].OccurredAt.Equal(recent) {
		t.Errorf("remaining entries = %+v", entries)
	}

	if _, err := repo.Prune(ctx, 0); !errors.Is(err, ErrInvalidRetention) {
		t.Errorf("Prune(0) error = %v, want ErrInvalidRetention", err)
	}
}

func TestRepository_AsEngineListener(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	engine := device.NewEngine(device.WithClock(func() time.Time { return baseTime }))
	if err := engine.Initialize([]device.Seed{
		{ID: "TC001", Name: "Unit 1", Status: device.StatusOnline, HealthStatus: device.HealthOptimal},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Subscribe(repo); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if _, err := engine.UpdateDeviceStatus(ctx, "TC001", device.Update{}.WithAlarm(true)); err != nil {
		t.Fatal(err)
	}
	// No-op update produces no event and therefore no archive row.
	if _, err := engine.UpdateDeviceStatus(ctx, "TC001", device.Update{}.WithAlarm(true)); err != nil {
		t.Fatal(err)
	}

	entries, err := repo.ListByDevice(ctx, "TC001", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("archived %d entries, want 1", len(entries))
	}
	if !entries[0].NewStatus.HasAlarm || entries[0].OldStatus.HasAlarm {
		t.Errorf("archived snapshots = old %+v new %+v", entries[0].OldStatus, entries[0].NewStatus)
	}
	if entries[0].Changes[0].Event != device.EventNewAlarm {
		t.Errorf("archived change = %+v", entries[0].Changes[0])
	}
}

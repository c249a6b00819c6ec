package archive

import (
	"context"
	"testing"

	"github.com/nerrad567/fleetwatch-core/internal/device"
)

func TestLoadSnapshots_KeepsLatest(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	if err := repo.Record(ctx, testEvent("TC001", baseTime, device.StatusOffline)); err != nil {
		t.Fatal(err)
	}
	if err := repo.Record(ctx, testEvent("TC001", baseTime.Add(1), device.StatusError)); err != nil {
		t.Fatal(err)
	}

	snaps, err := repo.LoadSnapshots(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshots() error = %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("LoadSnapshots() len = %d, want 1", len(snaps))
	}
	if snaps["TC001"].Status != device.StatusError {
		t.Errorf("snapshot status = %q, want error", snaps["TC001"].Status)
	}
}

func TestRestoreSeeds(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	battery := 12.5
	ev := testEvent("TC002", baseTime, device.StatusOffline)
	ev.NewStatus.HasAlarm = true
	ev.NewStatus.HealthStatus = device.HealthCritical
	ev.NewStatus.BatteryLevel = &battery
	ev.NewStatus.Name = "stale name"
	if err := repo.Record(ctx, ev); err != nil {
		t.Fatal(err)
	}
	// Unit removed from inventory since.
	if err := repo.Record(ctx, testEvent("TC099", baseTime, device.StatusError)); err != nil {
		t.Fatal(err)
	}

	seeds := []device.Seed{
		{ID: "TC001", Name: "Unit 1", Status: device.StatusOnline, HealthStatus: device.HealthOptimal},
		{ID: "TC002", Name: "Unit 2", Status: device.StatusOnline, HealthStatus: device.HealthOptimal},
	}

	got, restored, err := repo.RestoreSeeds(ctx, seeds)
	if err != nil {
		t.Fatalf("RestoreSeeds() error = %v", err)
	}
	if restored != 1 || len(got) != 2 {
		t.Fatalf("RestoreSeeds() restored %d of %d", restored, len(got))
	}
	if got[0].Status != device.StatusOnline {
		t.Errorf("TC001 changed without a snapshot: %+v", got[0])
	}

	tc2 := got[1]
	if tc2.Name != "Unit 2" {
		t.Errorf("Name = %q, inventory name should win", tc2.Name)
	}
	if tc2.Status != device.StatusOffline || !tc2.HasAlarm || tc2.HealthStatus != device.HealthCritical {
		t.Errorf("restored seed = %+v", tc2)
	}
	if tc2.BatteryLevel == nil || *tc2.BatteryLevel != 12.5 {
		t.Errorf("BatteryLevel = %v, want 12.5", tc2.BatteryLevel)
	}
	if seeds[1].Status != device.StatusOnline {
		t.Error("RestoreSeeds mutated its input")
	}
}

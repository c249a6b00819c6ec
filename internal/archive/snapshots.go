package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/fleetwatch-core/internal/device"
)

// LoadSnapshots returns the last archived state of every device, keyed by ID.
func (r *Repository) LoadSnapshots(ctx context.Context) (map[string]device.DeviceState, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT device_id, state FROM device_snapshots")
	if err != nil {
		return nil, fmt.Errorf("querying device snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make(map[string]device.DeviceState)
	for rows.Next() {
		var id, stateJSON string
		if err := rows.Scan(&id, &stateJSON); err != nil {
			return nil, fmt.Errorf("scanning device snapshot: %w", err)
		}
		var state device.DeviceState
		if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
			return nil, fmt.Errorf("unmarshalling snapshot for %s: %w", id, err)
		}
		snapshots[id] = state
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device snapshots: %w", err)
	}
	return snapshots, nil
}

// RestoreSeeds overlays archived snapshots onto the inventory seeds.
//
// The inventory decides which units exist and what they are called; a
// snapshot only restores operational fields (status, alert, alarm, health,
// telemetry levels). Snapshots for units no longer in the inventory are
// ignored.
func (r *Repository) RestoreSeeds(ctx context.Context, seeds []device.Seed) ([]device.Seed, int, error) {
	snapshots, err := r.LoadSnapshots(ctx)
	if err != nil {
		return nil, 0, err
	}

	restored := 0
	out := make([]device.Seed, len(seeds))
	for i, seed := range seeds {
		snap, ok := snapshots[seed.ID]
		if !ok {
			out[i] = seed
			continue
		}
		seed.Status = snap.Status
		seed.HasAlert = snap.HasAlert
		seed.HasAlarm = snap.HasAlarm
		seed.HealthStatus = snap.HealthStatus
		if snap.BatteryLevel != nil {
			seed.BatteryLevel = snap.BatteryLevel
		}
		if snap.WaterLevel != nil {
			seed.WaterLevel = snap.WaterLevel
		}
		out[i] = seed
		restored++
	}
	return out, restored, nil
}

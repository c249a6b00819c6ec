// Package inventory loads the fleet's device list, the initial snapshot
// the status engine is seeded from.
package inventory

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/fleetwatch-core/internal/device"
)

// Sentinel errors.
var (
	ErrEmptyInventory = errors.New("inventory: no devices defined")
	ErrMissingID      = errors.New("inventory: device id is required")
	ErrDuplicateID    = errors.New("inventory: duplicate device id")
)

// File is the YAML document layout.
//
//	devices:
//	  - id: TC001
//	    name: "Container 1"
//	    status: online
//	    health_status: optimal
//	    battery_level: 87.5
type File struct {
	Devices []Entry `yaml:"devices"`
}

// Entry is one unit in the inventory file.
type Entry struct {
	ID           string         `yaml:"id"`
	Name         string         `yaml:"name"`
	Status       string         `yaml:"status"`
	HasAlert     bool           `yaml:"has_alert"`
	HasAlarm     bool           `yaml:"has_alarm"`
	HealthStatus string         `yaml:"health_status"`
	BatteryLevel *float64       `yaml:"battery_level"`
	WaterLevel   *float64       `yaml:"water_level"`
	SerialNumber string         `yaml:"serial_number"`
	Location     string         `yaml:"location"`
	Extra        map[string]any `yaml:"extra"`
}

// Load reads and parses an inventory file.
func Load(path string) ([]device.Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading inventory file: %w", err)
	}
	seeds, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing inventory %s: %w", path, err)
	}
	return seeds, nil
}

// Parse decodes an inventory document into engine seeds, preserving file
// order. Missing status defaults to offline and missing health to optimal.
func Parse(data []byte) ([]device.Seed, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if len(f.Devices) == 0 {
		return nil, ErrEmptyInventory
	}

	seen := make(map[string]int, len(f.Devices))
	seeds := make([]device.Seed, 0, len(f.Devices))
	for i, e := range f.Devices {
		id := strings.TrimSpace(e.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: devices[%d]", ErrMissingID, i)
		}
		if prev, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %s (devices[%d] and devices[%d])", ErrDuplicateID, id, prev, i)
		}
		seen[id] = i
		seeds = append(seeds, e.seed(id))
	}
	return seeds, nil
}

func (e Entry) seed(id string) device.Seed {
	name := e.Name
	if name == "" {
		name = id
	}
	status := device.Status(strings.ToLower(e.Status))
	if status == "" {
		status = device.StatusOffline
	}
	health := device.HealthStatus(e.HealthStatus)
	if health == "" {
		health = device.HealthOptimal
	}

	return device.Seed{
		ID:           id,
		Name:         name,
		Status:       status,
		HasAlert:     e.HasAlert,
		HasAlarm:     e.HasAlarm,
		HealthStatus: health,
		BatteryLevel: e.BatteryLevel,
		WaterLevel:   e.WaterLevel,
		SerialNumber: e.SerialNumber,
		Location:     e.Location,
		Extra:        e.Extra,
	}
}

// Default returns the three-unit demo fleet used when no inventory file is
// configured.
func Default() []device.Seed {
	battery := func(v float64) *float64 { return &v }
	return []device.Seed{
		{
			ID:           "TC001",
			Name:         "Container 1",
			Status:       device.StatusOnline,
			HealthStatus: device.HealthOptimal,
			BatteryLevel: battery(92),
			SerialNumber: "SN-TC-0001",
			Location:     "Yard A",
		},
		{
			ID:           "TC002",
			Name:         "Container 2",
			Status:       device.StatusOffline,
			HasAlert:     true,
			HealthStatus: device.HealthWarning,
			BatteryLevel: battery(18),
			SerialNumber: "SN-TC-0002",
			Location:     "Yard A",
		},
		{
			ID:           "TC003",
			Name:         "Container 3",
			Status:       device.StatusMaintenance,
			HasAlarm:     true,
			HealthStatus: device.HealthCritical,
			BatteryLevel: battery(64),
			SerialNumber: "SN-TC-0003",
			Location:     "Yard B",
		},
	}
}

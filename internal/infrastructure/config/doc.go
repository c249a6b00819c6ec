// Package config loads FleetWatch Core settings.
//
// Values come from three layers, later layers winning: built-in defaults,
// the YAML file, then FLEETWATCH_* environment variables. Validate reports
// every problem at once rather than stopping at the first.
//
// Keep secrets (JWT secret, broker password, InfluxDB token) in the
// environment rather than the file.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return fmt.Errorf("loading config: %w", err)
//	}
//	engine := device.NewEngine(device.WithMaxHistorySize(cfg.Monitor.MaxHistorySize))
package config

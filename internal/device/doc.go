// Package device provides the status monitoring engine for FleetWatch Core.
//
// The Engine holds the last-known state of every fleet unit, classifies
// each update into change details, keeps a bounded newest-first history of
// the resulting events, and delivers them to registered listeners (the MQTT
// publisher, the metrics recorder, the archive and the WebSocket hub).
//
// # Architecture
//
//	 update source ──▶ Engine.UpdateDeviceStatus
//	                        │
//	                        ▼
//	               ┌─────────────────┐     ┌──────────────┐
//	               │  store (merge,  │────▶│    Detect    │
//	               │  commit)        │     │ (detector.go)│
//	               └─────────────────┘     └──────┬───────┘
//	                                              │ changes?
//	                        ┌─────────────────────┴──────┐
//	                        ▼                            ▼
//	               ┌─────────────────┐         ┌──────────────────┐
//	               │ History (ledger)│         │ subscribers      │
//	               │ newest first    │         │ (fan-out)        │
//	               └────────┬────────┘         └──────────────────┘
//	                        ▼
//	                 Project(role) ──▶ notification feed
//
// # Usage
//
//	engine := device.NewEngine(
//	    device.WithMaxHistorySize(cfg.Monitor.MaxHistorySize),
//	    device.WithLogger(log),
//	)
//	if err := engine.Initialize(seeds); err != nil {
//	    return err
//	}
//
//	unsubscribe, err := engine.Subscribe(device.ListenerFunc(
//	    func(ctx context.Context, ev device.StatusChangeEvent) error {
//	        log.Info("changed", "device_id", ev.DeviceID)
//	        return nil
//	    }))
//	defer unsubscribe()
//
//	res, err := engine.UpdateDeviceStatus(ctx, "TC001",
//	    device.Update{}.WithStatus(device.StatusOffline))
//
// # Thread Safety
//
// Updates are serialised, including listener dispatch, so listeners see
// events in commit order. A listener must not call back into
// UpdateDeviceStatus synchronously. Reads (Get, GetAll, Recent,
// Notifications) run concurrently and return copies.
package device

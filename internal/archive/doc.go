// Package archive persists committed status change events to SQLite.
//
// The in-memory ledger in package device is bounded and lost on restart.
// When archive.enabled is set, a Repository is subscribed to the engine as
// a listener and keeps every event (change details plus the old and new
// snapshots, stored as JSON) in the status_change_events table, alongside
// the last committed state of each unit in device_snapshots.
//
// On startup RestoreSeeds overlays the stored snapshots onto the inventory
// so units resume from their last known status. Prune enforces
// archive.retention_days.
package archive

// Package database provides SQLite connectivity for FleetWatch Core.
//
// The in-memory device engine never touches the database. SQLite backs the
// optional status-change archive, so history survives restarts for audit.
//
// This package manages:
//   - Connection setup with WAL mode and busy timeout
//   - Embedded, versioned schema migrations
//
// Usage:
//
//	db, err := database.Open(database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql. Migrations are additive: new columns must be
// nullable or have defaults.
package database

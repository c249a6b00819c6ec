// Package api implements the HTTP REST API and WebSocket server for FleetWatch Core.
//
// This package provides:
//   - REST endpoints for unit state, manual status edits, history and the
//     role-filtered notification feed
//   - WebSocket hub streaming status change events to dashboards
//   - JWT authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - TLS support for production deployments
//
// # Architecture
//
// The server reads from the device engine and is one of its update sources
// (PATCH /devices/{id}/status). The Hub is registered as an engine listener:
// every event is broadcast on "device.status_changed", and each client
// subscribed to "notifications" receives the feed projected for its own role.
//
//	server, err := api.New(deps)
//	unsubscribe, _ := engine.Subscribe(server.Hub())
//	server.Start(ctx)
//	defer server.Close()
//
// # Security
//
// Operators log in against the configured directory and receive a JWT
// carrying their role. Routes are gated by role permissions. WebSocket
// connections use single-use tickets so the JWT never appears in a URL; the
// ticket carries the role into the connection.
//
// # Graceful Degradation
//
// MQTT, the telemetry ingestor and the archive are optional. Without the
// archive, GET /devices/{id}/archive returns 503.
package api

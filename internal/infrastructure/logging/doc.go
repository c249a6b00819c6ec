// Package logging wraps log/slog for FleetWatch Core.
//
// Every entry carries service and version attributes. Output is JSON or
// text, to stdout or stderr, filtered by level:
//
//	logging:
//	  level: info      # debug | info | warn | error
//	  format: json     # json | text
//	  output: stdout   # stdout | stderr
//
// Domain packages never import this package; they declare a small Logger
// interface that *Logger satisfies.
//
//	logger := logging.New(cfg.Logging, version)
//	engine := device.NewEngine(device.WithLogger(logger.With("component", "engine")))
//
// Never log the JWT secret, operator password hashes or broker credentials.
package logging

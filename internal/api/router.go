package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/fleetwatch-core/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// System metrics (no auth required for basic monitoring)
		r.Get("/metrics", s.handleMetrics)
		if s.prometheus != nil {
			r.Method(http.MethodGet, "/metrics/prometheus", s.prometheus)
		}

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/devices", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermDeviceRead)).Get("/", s.handleListDevices)

				r.Route("/{id}", func(r chi.Router) {
					r.With(s.requirePermission(auth.PermDeviceRead)).Get("/", s.handleGetDevice)
					r.With(s.requirePermission(auth.PermDeviceUpdate)).Patch("/status", s.handleUpdateDeviceStatus)
					r.With(s.requirePermission(auth.PermArchiveRead)).Get("/archive", s.handleDeviceArchive)
				})
			})

			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermHistoryRead))
				r.Get("/history", s.handleHistory)
				r.Get("/notifications", s.handleNotifications)
			})

			r.With(s.requirePermission(auth.PermSystemAdmin)).Put("/history/size", s.handleSetHistorySize)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"version":     s.version,
		"initialized": s.engine.Initialized(),
		"devices":     s.engine.Count(),
	})
}

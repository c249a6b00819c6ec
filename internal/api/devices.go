package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/fleetwatch-core/internal/device"
	"github.com/nerrad567/fleetwatch-core/internal/telemetry"
)

// updateStatusResponse is the body of PATCH /devices/{id}/status.
type updateStatusResponse struct {
	Outcome string                    `json:"outcome"`
	Device  device.DeviceState        `json:"device"`
	Event   *device.StatusChangeEvent `json:"event,omitempty"`
}

// handleListDevices returns every unit's current state.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.engine.GetAll()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns a single unit's state.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, ok := s.engine.Get(id)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleUpdateDeviceStatus applies a manual edit to a unit.
// The body uses the same JSON shape as a telemetry message.
func (s *Server) handleUpdateDeviceStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "reading request body: "+err.Error())
		return
	}

	update, err := telemetry.DecodeUpdate(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}
	if update.IsEmpty() {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "update contains no fields")
		return
	}

	res, err := s.engine.UpdateDeviceStatus(r.Context(), id, update)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("manual status update failed", "device_id", id, "error", err)
		writeInternalError(w, "failed to update device")
		return
	}
	if res.Outcome == device.OutcomeNotFound {
		writeNotFound(w, "device not found")
		return
	}

	state, _ := s.engine.Get(id)
	if claims := claimsFromContext(r.Context()); claims != nil {
		s.logger.Info("manual status update",
			"device_id", id,
			"outcome", res.Outcome.String(),
			"operator", claims.Subject,
		)
	}

	writeJSON(w, http.StatusOK, updateStatusResponse{
		Outcome: res.Outcome.String(),
		Device:  state,
		Event:   res.Event,
	})
}

// handleDeviceArchive returns archived events for one unit, newest first.
func (s *Server) handleDeviceArchive(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeServiceUnavailable(w, "archive is not enabled")
		return
	}

	id := chi.URLParam(r, "id")
	if _, ok := s.engine.Get(id); !ok {
		writeNotFound(w, "device not found")
		return
	}

	limit, err := queryInt(r, "limit", s.historyLimit)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	entries, err := s.archive.ListByDevice(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("reading archive", "device_id", id, "error", err)
		writeInternalError(w, "failed to read archive")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"entries":   entries,
		"count":     len(entries),
	})
}

// queryInt parses an optional integer query parameter.
// A missing value returns def. Non-positive values are passed through so
// the callee can apply its own default.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return n, nil
}

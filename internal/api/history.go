package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/fleetwatch-core/internal/auth"
	"github.com/nerrad567/fleetwatch-core/internal/device"
)

// maxHistorySizeLimit is the largest bound accepted by PUT /history/size.
const maxHistorySizeLimit = 100_000

// historySizeRequest is the body of PUT /history/size.
type historySizeRequest struct {
	MaxSize int `json:"max_size"`
}

// handleHistory returns recent status change events the caller's role may
// view, newest first. GET /history?limit=N; a non-positive limit uses the
// configured default. The limit applies after filtering and total counts
// the visible events.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", s.historyLimit)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if limit <= 0 {
		limit = s.historyLimit
	}

	role := auth.RoleViewer
	if claims := claimsFromContext(r.Context()); claims != nil {
		role = claims.Role
	}

	all := s.engine.Recent(s.engine.HistoryLen())
	events := make([]device.StatusChangeEvent, 0, min(limit, len(all)))
	total := 0
	for _, ev := range all {
		if !device.CanView(string(role), ev.DeviceID) {
			continue
		}
		total++
		if len(events) < limit {
			events = append(events, ev)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
		"total":  total,
	})
}

// handleNotifications returns the notification feed for the caller's role.
// GET /notifications?window=N; a non-positive window uses the default.
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	window, err := queryInt(r, "window", s.notifyWindow)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if window <= 0 {
		window = s.notifyWindow
	}

	role := auth.RoleViewer
	if claims := claimsFromContext(r.Context()); claims != nil {
		role = claims.Role
	}

	notifications := s.engine.Notifications(string(role), window)
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": notifications,
		"count":         len(notifications),
		"role":          role,
	})
}

// handleSetHistorySize changes the ledger bound at runtime.
func (s *Server) handleSetHistorySize(w http.ResponseWriter, r *http.Request) {
	var req historySizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.MaxSize < 1 || req.MaxSize > maxHistorySizeLimit {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "max_size must be between 1 and 100000")
		return
	}

	s.engine.SetMaxHistorySize(req.MaxSize)
	s.logger.Info("history size changed", "max_size", req.MaxSize)

	writeJSON(w, http.StatusOK, map[string]any{
		"max_size": req.MaxSize,
		"retained": s.engine.HistoryLen(),
	})
}

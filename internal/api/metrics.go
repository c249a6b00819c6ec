package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/fleetwatch-core/internal/device"
	"github.com/nerrad567/fleetwatch-core/internal/telemetry"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string                   `json:"timestamp"`
	Version       string                   `json:"version"`
	UptimeSeconds int64                    `json:"uptime_seconds"`
	Runtime       RuntimeMetrics           `json:"runtime"`
	WebSocket     WSMetrics                `json:"websocket"`
	MQTT          MQTTMetrics              `json:"mqtt"`
	Telemetry     *telemetry.IngestorStats `json:"telemetry,omitempty"`
	Queues        []device.QueueStats      `json:"queues,omitempty"`
	Devices       DeviceMetrics            `json:"devices"`
	History       HistoryMetrics           `json:"history"`
	Database      *DatabaseMetrics         `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Enabled       bool `json:"enabled"`
	Connected     bool `json:"connected"`
	Subscriptions int  `json:"subscriptions"`
}

// DeviceMetrics summarises the fleet.
type DeviceMetrics struct {
	Total     int            `json:"total"`
	Online    int            `json:"online"`
	Alerts    int            `json:"alerts"`
	Alarms    int            `json:"alarms"`
	ByStatus  map[string]int `json:"by_status"`
	ByHealth  map[string]int `json:"by_health"`
	Listeners int            `json:"listeners"`
}

// HistoryMetrics describes the in-memory change ledger.
type HistoryMetrics struct {
	Retained int `json:"retained"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns comprehensive system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		History: HistoryMetrics{
			Retained: s.engine.HistoryLen(),
		},
	}

	if s.mqtt != nil {
		metrics.MQTT = MQTTMetrics{
			Enabled:       true,
			Connected:     s.mqtt.IsConnected(),
			Subscriptions: s.mqtt.SubscriptionCount(),
		}
	}

	if s.ingest != nil {
		stats := s.ingest.Stats()
		metrics.Telemetry = &stats
	}

	for _, q := range s.queues {
		metrics.Queues = append(metrics.Queues, q.Stats())
	}

	devices := DeviceMetrics{
		ByStatus:  make(map[string]int),
		ByHealth:  make(map[string]int),
		Listeners: s.engine.SubscriberCount(),
	}
	for _, d := range s.engine.GetAll() {
		devices.Total++
		if d.IsOnline {
			devices.Online++
		}
		if d.HasAlert {
			devices.Alerts++
		}
		if d.HasAlarm {
			devices.Alarms++
		}
		devices.ByStatus[string(d.Status)]++
		devices.ByHealth[string(d.HealthStatus)]++
	}
	metrics.Devices = devices

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}

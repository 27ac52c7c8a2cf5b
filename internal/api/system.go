package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/uts-core/internal/manager"
	"github.com/nerrad567/uts-core/internal/pool"
)

// SystemMetrics is the response of GET /system.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	MQTT          ConnectionStatus `json:"mqtt"`
	InfluxDB      ConnectionStatus `json:"influxdb"`
	Components    manager.Stats    `json:"components"`
	Pool          *pool.Stats      `json:"pool,omitempty"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
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

// ConnectionStatus reports an optional external connection.
type ConnectionStatus struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleSystem returns a JSON snapshot of the daemon's state, for operators
// without a Prometheus scraper.
func (s *Server) handleSystem(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	resp := SystemMetrics{
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
		MQTT:       connectionStatus(s.mqtt),
		InfluxDB:   connectionStatus(s.influx),
		Components: s.manager.Stats(),
	}

	if s.pool != nil {
		stats := s.pool.Stats()
		resp.Pool = &stats
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		resp.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func connectionStatus(src ConnectionSource) ConnectionStatus {
	if src == nil {
		return ConnectionStatus{}
	}
	return ConnectionStatus{Enabled: true, Connected: src.IsConnected()}
}

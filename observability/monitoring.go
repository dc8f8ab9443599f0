package observability

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// ProcessStats is what the heartbeat reads about its own process.
type ProcessStats struct {
	PID        int32   `json:"pid"`
	Status     string  `json:"status"`
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
}

// MonitoringStats is the snapshot served by /health and logged by the heartbeat.
type MonitoringStats struct {
	Connections   int64        `json:"connections"`
	MessagesSent  uint64       `json:"messages_sent"`
	DroppedEvents uint64       `json:"dropped_events"`
	StoreErrors   uint64       `json:"store_errors"`
	AllocMemMb    uint64       `json:"alloc_mem_mb"`
	NumGC         uint32       `json:"num_gc"`
	Goroutines    int          `json:"goroutines"`
	Process       ProcessStats `json:"process"`
	CheckedAt     time.Time    `json:"checked_at"`
}

// MonitoringManager keeps counters updated on the hot path with atomics.
type MonitoringManager struct {
	log *slog.Logger
	mu  sync.RWMutex

	connections   atomic.Int64
	messagesSent  atomic.Uint64
	droppedEvents atomic.Uint64
	storeErrors   atomic.Uint64
	process       ProcessStats
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{log: log}
}

func (mm *MonitoringManager) IncrConnections() {
	mm.connections.Add(1)
}

func (mm *MonitoringManager) DecrConnections() {
	mm.connections.Add(-1)
}

func (mm *MonitoringManager) IncrMessages() {
	mm.messagesSent.Add(1)
}

func (mm *MonitoringManager) IncrDroppedEvents() {
	mm.droppedEvents.Add(1)
}

func (mm *MonitoringManager) IncrStoreErrors() {
	mm.storeErrors.Add(1)
}

func (mm *MonitoringManager) UpdateProcess(stats ProcessStats) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.process = stats
}

func (mm *MonitoringManager) GetLatest() MonitoringStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	mm.mu.RLock()
	process := mm.process
	mm.mu.RUnlock()

	return MonitoringStats{
		Connections:   mm.connections.Load(),
		MessagesSent:  mm.messagesSent.Load(),
		DroppedEvents: mm.droppedEvents.Load(),
		StoreErrors:   mm.storeErrors.Load(),
		AllocMemMb:    m.Alloc / 1024 / 1024,
		NumGC:         m.NumGC,
		Goroutines:    runtime.NumGoroutine(),
		Process:       process,
		CheckedAt:     time.Now().UTC(),
	}
}

// Log writes the current snapshot at debug level.
func (mm *MonitoringManager) Log() {
	stats := mm.GetLatest()
	mm.log.Debug("Stats updated",
		"connections", stats.Connections,
		"messages_sent", stats.MessagesSent,
		"dropped_events", stats.DroppedEvents,
		"store_errors", stats.StoreErrors,
		"rss_bytes", stats.Process.RSSBytes,
		"cpu_percent", stats.Process.CPUPercent,
		"mem_mb", stats.AllocMemMb,
	)
}

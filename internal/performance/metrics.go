// Package performance collects runtime and connection metrics for the debug view.
package performance

import (
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/peternagy/mongobrowse/internal/connection"
	"github.com/peternagy/mongobrowse/internal/stats"
)

// Metrics holds performance and runtime statistics
type Metrics struct {
	// Go runtime
	HeapAlloc      uint64 `json:"heapAlloc"`      // Bytes allocated and in use
	HeapSys        uint64 `json:"heapSys"`        // Bytes obtained from system
	HeapInuse      uint64 `json:"heapInuse"`      // Bytes in non-idle spans
	StackInuse     uint64 `json:"stackInuse"`     // Bytes in stack spans
	Goroutines     int    `json:"goroutines"`     // Number of goroutines
	NumGC          uint32 `json:"numGC"`          // Number of completed GC cycles
	LastGCPauseNs  uint64 `json:"lastGCPauseNs"`  // Duration of last GC pause in nanoseconds
	TotalAllocated uint64 `json:"totalAllocated"` // Total bytes allocated (cumulative)

	// Executor
	ActiveCalls int64  `json:"activeCalls"` // Execute calls holding a connection or tunnel
	Calls       uint64 `json:"calls"`       // Execute calls started
	FailedCalls uint64 `json:"failedCalls"` // Execute calls that ended in Failed

	UptimeSeconds int64  `json:"uptimeSeconds"`
	Timestamp     string `json:"timestamp"`
}

// Service counts executor calls and samples the Go runtime.
type Service struct {
	startTime time.Time
	active    atomic.Int64
	calls     atomic.Uint64
	failures  atomic.Uint64
}

// NewService creates a new performance metrics service
func NewService() *Service {
	return &Service{startTime: time.Now()}
}

// Observe is meant for connection.Executor.OnTransition.
func (s *Service) Observe(t connection.Transition) {
	switch t.To {
	case connection.Connecting:
		s.calls.Add(1)
		s.active.Add(1)
	case connection.Idle:
		s.active.Add(-1)
	case connection.Failed:
		s.failures.Add(1)
		s.active.Add(-1)
	}
}

// GetMetrics returns current performance metrics
func (s *Service) GetMetrics() *Metrics {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	var lastGCPause uint64
	if memStats.NumGC > 0 {
		// PauseNs is a circular buffer of recent GC pause times
		lastGCPause = memStats.PauseNs[(memStats.NumGC+255)%256]
	}

	return &Metrics{
		HeapAlloc:      memStats.HeapAlloc,
		HeapSys:        memStats.HeapSys,
		HeapInuse:      memStats.HeapInuse,
		StackInuse:     memStats.StackInuse,
		Goroutines:     runtime.NumGoroutine(),
		NumGC:          memStats.NumGC,
		LastGCPauseNs:  lastGCPause,
		TotalAllocated: memStats.TotalAlloc,
		ActiveCalls:    s.active.Load(),
		Calls:          s.calls.Load(),
		FailedCalls:    s.failures.Load(),
		UptimeSeconds:  int64(time.Since(s.startTime).Seconds()),
		Timestamp:      time.Now().Format(time.RFC3339),
	}
}

// Rows renders m as report rows in the same shape as the stats views.
func (m *Metrics) Rows() []stats.Row {
	size := func(key string, n uint64) stats.Row {
		return stats.Row{Key: key, Kind: stats.ByteSize, Raw: int64(n), Display: stats.FormatBytes(float64(n))}
	}
	count := func(key string, n int64) stats.Row {
		return stats.Row{Key: key, Kind: stats.Count, Raw: n, Display: strconv.FormatInt(n, 10)}
	}
	return []stats.Row{
		count("calls", int64(m.Calls)),
		count("failedCalls", int64(m.FailedCalls)),
		count("activeCalls", m.ActiveCalls),
		size("heapAlloc", m.HeapAlloc),
		size("heapInuse", m.HeapInuse),
		size("stackInuse", m.StackInuse),
		size("totalAllocated", m.TotalAllocated),
		count("goroutines", int64(m.Goroutines)),
		count("numGC", int64(m.NumGC)),
		{Key: "lastGCPause", Kind: stats.Text, Raw: m.LastGCPauseNs, Display: time.Duration(m.LastGCPauseNs).String()},
		{Key: "uptime", Kind: stats.Text, Raw: m.UptimeSeconds, Display: (time.Duration(m.UptimeSeconds) * time.Second).String()},
	}
}

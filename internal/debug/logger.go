// Package debug provides categorised debug logging routed to the host through an event emitter.
package debug

import (
	"sync"

	"github.com/peternagy/mongobrowse/internal/core"
)

// Categories for debug logging
const (
	CategoryConnection = "connection"
	CategoryTunnel     = "tunnel"
	CategoryQuery      = "query"
	CategoryDocument   = "document"
	CategoryStats      = "stats"
	CategoryStorage    = "storage"
)

// EventName is the event every log line is emitted under.
const EventName = "debug:log"

// Logger provides debug logging that emits events to the host
type Logger struct {
	emitter core.EventEmitter
	enabled bool
	mu      sync.RWMutex
}

// Global logger instance
var globalLogger = &Logger{}

// Init sets the emitter that receives log events. Logging stays disabled
// until SetEnabled(true).
func Init(emitter core.EventEmitter) {
	globalLogger.mu.Lock()
	globalLogger.emitter = emitter
	globalLogger.mu.Unlock()
}

// SetEnabled enables or disables debug logging
func SetEnabled(enabled bool) {
	globalLogger.mu.Lock()
	globalLogger.enabled = enabled
	globalLogger.mu.Unlock()
}

// IsEnabled returns whether debug logging is enabled
func IsEnabled() bool {
	globalLogger.mu.RLock()
	defer globalLogger.mu.RUnlock()
	return globalLogger.enabled && globalLogger.emitter != nil
}

// Log emits a debug log event
// category: one of the Category* constants
// message: short one-liner summary
// details: optional map with additional context (can be nil)
func Log(category, message string, details map[string]interface{}) {
	globalLogger.mu.RLock()
	enabled := globalLogger.enabled
	emitter := globalLogger.emitter
	globalLogger.mu.RUnlock()

	if !enabled || emitter == nil {
		return
	}

	emitter.Emit(EventName, category, message, details)
}

// LogConnection logs a connection-related debug message
func LogConnection(message string, details map[string]interface{}) {
	Log(CategoryConnection, message, details)
}

// LogTunnel logs an SSH tunnel debug message
func LogTunnel(message string, details map[string]interface{}) {
	Log(CategoryTunnel, message, details)
}

// LogQuery logs a query-related debug message
func LogQuery(message string, details map[string]interface{}) {
	Log(CategoryQuery, message, details)
}

// LogDocument logs a document-related debug message
func LogDocument(message string, details map[string]interface{}) {
	Log(CategoryDocument, message, details)
}

// LogStats logs a statistics-related debug message
func LogStats(message string, details map[string]interface{}) {
	Log(CategoryStats, message, details)
}

// LogStorage logs a configuration storage debug message
func LogStorage(message string, details map[string]interface{}) {
	Log(CategoryStorage, message, details)
}

package core

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// EventEmitter defines the interface for emitting events to the host UI.
type EventEmitter interface {
	Emit(eventName string, data ...interface{})
}

// WailsEventEmitter emits events using the Wails runtime.
type WailsEventEmitter struct {
	Ctx context.Context
}

// Emit sends an event to the frontend via Wails runtime.
func (e *WailsEventEmitter) Emit(eventName string, data ...interface{}) {
	if e.Ctx != nil {
		runtime.EventsEmit(e.Ctx, eventName, data...)
	}
}

// WriterEmitter renders events as single text lines on a writer.
// Used by the command-line host for --debug output.
type WriterEmitter struct {
	mu sync.Mutex
	W  io.Writer
}

// NewWriterEmitter creates an emitter writing to w.
func NewWriterEmitter(w io.Writer) *WriterEmitter {
	return &WriterEmitter{W: w}
}

// Emit writes "eventName arg1 arg2 ..." followed by a newline.
// Map arguments are printed as sorted key=value pairs.
func (e *WriterEmitter) Emit(eventName string, data ...interface{}) {
	if e.W == nil {
		return
	}
	var b strings.Builder
	b.WriteString(eventName)
	for _, d := range data {
		b.WriteByte(' ')
		switch v := d.(type) {
		case map[string]interface{}:
			b.WriteString(formatDetails(v))
		default:
			fmt.Fprintf(&b, "%v", v)
		}
	}
	b.WriteByte('\n')

	e.mu.Lock()
	defer e.mu.Unlock()
	io.WriteString(e.W, b.String())
}

func formatDetails(details map[string]interface{}) string {
	if len(details) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, details[k]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// NoopEventEmitter is a no-op event emitter for testing.
type NoopEventEmitter struct{}

// Emit does nothing (used for tests).
func (e *NoopEventEmitter) Emit(eventName string, data ...interface{}) {}

// RecordingEmitter keeps every emitted event in memory.
type RecordingEmitter struct {
	mu     sync.Mutex
	Events []RecordedEvent
}

// RecordedEvent is one event captured by a RecordingEmitter.
type RecordedEvent struct {
	Name string
	Data []interface{}
}

// Emit records the event.
func (e *RecordingEmitter) Emit(eventName string, data ...interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Events = append(e.Events, RecordedEvent{Name: eventName, Data: data})
}

// Names returns the recorded event names in emission order.
func (e *RecordingEmitter) Names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, len(e.Events))
	for i, ev := range e.Events {
		names[i] = ev.Name
	}
	return names
}

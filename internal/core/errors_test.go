package core

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"query syntax", &QuerySyntaxError{Field: "filter", Message: "unexpected end"}, "invalid filter: unexpected end"},
		{"duplicate key", &DuplicateKeyError{Key: "name"}, `duplicate key: "name" already exists`},
		{"value parse", &ValueParseError{Kind: "bool", Input: "notabool"}, `cannot parse "notabool" as bool`},
		{"value parse with reason", &ValueParseError{Kind: "int32", Input: "9999999999", Reason: "out of range"}, `cannot parse "9999999999" as int32: out of range`},
		{"connection", &ConnectionError{Message: "failed to connect", Err: errors.New("refused")}, "failed to connect: refused"},
		{"connection no cause", &ConnectionError{Message: "tunnel closed"}, "tunnel closed"},
		{"configuration", &ConfigurationError{Field: "addresses", Reason: "at least one address is required"}, "invalid configuration addresses: at least one address is required"},
		{"configuration no field", &ConfigurationError{Reason: "missing target"}, "invalid configuration: missing target"},
		{"not found", &ConfigurationNotFoundError{ID: "abc"}, "server configuration not found: abc"},
		{"document not found", &DocumentNotFoundError{Namespace: "shop.people", ID: "99"}, "document not found in shop.people: 99"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConnectionErrorUnwrap(t *testing.T) {
	cause := errors.New("auth failed")
	err := fmt.Errorf("outer: %w", &ConnectionError{Message: "connect", Err: cause})

	var ce *ConnectionError
	if !errors.As(err, &ce) {
		t.Fatal("errors.As should find ConnectionError")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the wrapped cause")
	}
}

func TestIsCallerError(t *testing.T) {
	if !IsCallerError(fmt.Errorf("wrapped: %w", &QuerySyntaxError{Field: "sort"})) {
		t.Error("wrapped QuerySyntaxError should be a caller error")
	}
	if !IsCallerError(&ConfigurationError{Reason: "x"}) {
		t.Error("ConfigurationError should be a caller error")
	}
	if !IsCallerError(&DocumentNotFoundError{Namespace: "a.b", ID: "1"}) {
		t.Error("DocumentNotFoundError should be a caller error")
	}
	if IsCallerError(&ConnectionError{Message: "x"}) {
		t.Error("ConnectionError is not a caller error")
	}
	if IsCallerError(errors.New("plain")) {
		t.Error("plain error is not a caller error")
	}
}

func TestWriterEmitter(t *testing.T) {
	var buf bytes.Buffer
	e := NewWriterEmitter(&buf)
	e.Emit("debug:log", "connection", "connected", map[string]interface{}{"port": 27017, "host": "localhost"})

	got := buf.String()
	want := "debug:log connection connected {host=localhost port=27017}\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRecordingEmitter(t *testing.T) {
	e := &RecordingEmitter{}
	e.Emit("a")
	e.Emit("b", 1)
	if names := strings.Join(e.Names(), ","); names != "a,b" {
		t.Errorf("Names() = %q", names)
	}
}

func TestWailsEmitterWithoutContext(t *testing.T) {
	// Must not reach the Wails runtime without a context.
	e := &WailsEventEmitter{}
	e.Emit("pagination:changed", 1)
}

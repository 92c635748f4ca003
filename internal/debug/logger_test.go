package debug

import (
	"testing"

	"github.com/peternagy/mongobrowse/internal/core"
)

func TestLogDisabledByDefault(t *testing.T) {
	rec := &core.RecordingEmitter{}
	Init(rec)
	t.Cleanup(func() { Init(nil); SetEnabled(false) })

	LogQuery("find", nil)
	if len(rec.Events) != 0 {
		t.Fatalf("expected no events while disabled, got %d", len(rec.Events))
	}
}

func TestLogEmitsCategoryAndDetails(t *testing.T) {
	rec := &core.RecordingEmitter{}
	Init(rec)
	SetEnabled(true)
	t.Cleanup(func() { Init(nil); SetEnabled(false) })

	if !IsEnabled() {
		t.Fatal("IsEnabled() = false after SetEnabled(true)")
	}

	LogConnection("connected", map[string]interface{}{"host": "localhost"})
	LogTunnel("tunnel ready", nil)

	if len(rec.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(rec.Events))
	}
	ev := rec.Events[0]
	if ev.Name != EventName {
		t.Errorf("event name = %q, want %q", ev.Name, EventName)
	}
	if ev.Data[0] != CategoryConnection || ev.Data[1] != "connected" {
		t.Errorf("unexpected payload %v", ev.Data)
	}
	if rec.Events[1].Data[0] != CategoryTunnel {
		t.Errorf("second event category = %v", rec.Events[1].Data[0])
	}
}

func TestIsEnabledWithoutEmitter(t *testing.T) {
	Init(nil)
	SetEnabled(true)
	t.Cleanup(func() { SetEnabled(false) })

	if IsEnabled() {
		t.Error("IsEnabled() should be false without an emitter")
	}
	LogStats("no emitter", nil) // must not panic
}

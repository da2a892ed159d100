package bridge_test

import (
	"testing"

	"github.com/omochice/lirc-bridge/internal/bridge"
	"github.com/omochice/lirc-bridge/pkg/protocol"
)

func TestHub_Register(t *testing.T) {
	hub := bridge.NewHub(nil)
	hub.Register(bridge.NewSubscriber(bridge.FormatBinary, 10))

	if got := hub.Count(); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
}

func TestHub_Register_MultipleSubscribers(t *testing.T) {
	hub := bridge.NewHub(nil)

	for i := 0; i < 3; i++ {
		hub.Register(bridge.NewSubscriber(bridge.FormatBinary, 10))
	}

	if got := hub.Count(); got != 3 {
		t.Errorf("Count() = %d, want 3", got)
	}
}

func TestHub_Unregister(t *testing.T) {
	hub := bridge.NewHub(nil)
	sub := bridge.NewSubscriber(bridge.FormatBinary, 10)

	hub.Register(sub)
	hub.Unregister(sub)
	hub.Unregister(sub)

	if got := hub.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0", got)
	}
	if _, ok := <-sub.Outgoing; ok {
		t.Error("Outgoing should be closed after Unregister")
	}
}

func TestHub_Broadcast(t *testing.T) {
	hub := bridge.NewHub(nil)
	binary := bridge.NewSubscriber(bridge.FormatBinary, 10)
	text := bridge.NewSubscriber(bridge.FormatJSON, 10)
	hub.Register(binary)
	hub.Register(text)

	want := &protocol.Event{Type: protocol.EventTypeKey, Code: "0000000000000000", Key: "KEY_POWER", Remote: "living_room"}
	hub.Broadcast(want)

	var got protocol.Event
	if err := got.Decode(<-binary.Outgoing); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.Key != want.Key || got.Remote != want.Remote || got.Type != want.Type {
		t.Errorf("binary subscriber got %+v, want %+v", got, *want)
	}

	got = protocol.Event{}
	if err := got.DecodeJSON(<-text.Outgoing); err != nil {
		t.Fatalf("DecodeJSON() error = %v", err)
	}
	if got.Key != want.Key || got.Code != want.Code {
		t.Errorf("json subscriber got %+v, want %+v", got, *want)
	}
}

func TestHub_Broadcast_FullQueue(t *testing.T) {
	hub := bridge.NewHub(nil)
	slow := bridge.NewSubscriber(bridge.FormatBinary, 1)
	fast := bridge.NewSubscriber(bridge.FormatBinary, 10)
	hub.Register(slow)
	hub.Register(fast)

	for i := 0; i < 3; i++ {
		hub.Broadcast(&protocol.Event{Type: protocol.EventTypeKey, Index: i})
	}

	if got := len(slow.Outgoing); got != 1 {
		t.Errorf("slow subscriber queued %d events, want 1", got)
	}
	if got := len(fast.Outgoing); got != 3 {
		t.Errorf("fast subscriber queued %d events, want 3", got)
	}
}

func TestFormat_String(t *testing.T) {
	tests := []struct {
		format bridge.Format
		want   string
	}{
		{bridge.FormatBinary, "binary"},
		{bridge.FormatJSON, "json"},
		{bridge.Format(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.format.String(); got != tt.want {
			t.Errorf("Format(%d).String() = %q, want %q", tt.format, got, tt.want)
		}
	}
}

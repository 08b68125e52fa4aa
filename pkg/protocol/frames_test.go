package protocol

import (
	"encoding/json"
	"testing"
)

func TestEventFrameCarriesNameInType(t *testing.T) {
	ev := NewEvent(EventHealth, map[string]int{"clients": 2})
	ev.Seq = 7

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var wire map[string]interface{}
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if wire["type"] != EventHealth {
		t.Fatalf("type = %v, want %q", wire["type"], EventHealth)
	}
	if _, ok := wire["event"]; ok {
		t.Fatalf("stray event field on the wire: %s", data)
	}
	if wire["seq"] != float64(7) {
		t.Fatalf("seq = %v, want 7", wire["seq"])
	}
	if _, ok := wire["timestamp"]; !ok {
		t.Fatal("missing timestamp")
	}
}

func TestResponseFrameKeepsDiscriminator(t *testing.T) {
	data, err := json.Marshal(NewOKResponse("r1", map[string]bool{"ok": true}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var wire map[string]interface{}
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if wire["type"] != FrameResponse {
		t.Fatalf("type = %v, want %q", wire["type"], FrameResponse)
	}
	if wire["requestId"] != "r1" {
		t.Fatalf("requestId = %v, want r1", wire["requestId"])
	}
}

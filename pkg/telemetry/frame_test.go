package telemetry

import (
	"testing"
	"time"
)

func TestDecode_HostMetrics(t *testing.T) {
	raw := []byte(`{"type":"host_metrics","data":{"host_id":"h1","cpu_percent":42.5,"mem_percent":60,"mem_bytes":1073741824,"net_bytes_per_sec":2048}}`)
	frame, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	hs, ok := frame.(HostSample)
	if !ok {
		t.Fatalf("frame type = %T, want HostSample", frame)
	}
	if hs.HostID != "h1" || hs.CPUPercent != 42.5 || hs.MemBytes != 1073741824 {
		t.Errorf("decoded sample = %+v", hs)
	}
}

func TestDecode_ContainerStats(t *testing.T) {
	raw := []byte(`{"type":"container_stats","data":{"host_id":"h1","id":"abc123def456789","name":"web","state":"running","status":"Up 2 hours","cpu_percent":5.5,"memory_percent":null,"memory_usage":null,"network_rx":100,"network_tx":null,"web_ui_url":null}}`)
	frame, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	cs, ok := frame.(ContainerSample)
	if !ok {
		t.Fatalf("frame type = %T, want ContainerSample", frame)
	}
	if cs.CPUPercent == nil || *cs.CPUPercent != 5.5 {
		t.Errorf("cpu_percent = %v, want 5.5", cs.CPUPercent)
	}
	// Null numeric fields decode to nil pointers, not zeros.
	if cs.MemoryPercent != nil || cs.WebUIURL != nil || cs.NetworkTx != nil {
		t.Errorf("null fields decoded non-nil: %+v", cs)
	}
	if cs.NetworkRx == nil || *cs.NetworkRx != 100 {
		t.Errorf("network_rx = %v, want 100", cs.NetworkRx)
	}
}

func TestDecode_Removal(t *testing.T) {
	raw := []byte(`{"type":"removal","data":{"scope":"container","host_id":"h1","container_id":"abc123def456"}}`)
	frame, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	rm, ok := frame.(Removal)
	if !ok {
		t.Fatalf("frame type = %T, want Removal", frame)
	}
	if rm.Scope != ScopeContainer || rm.ContainerID != "abc123def456" {
		t.Errorf("decoded removal = %+v", rm)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{{{`},
		{"unknown type", `{"type":"heartbeat","data":{}}`},
		{"host metrics missing host_id", `{"type":"host_metrics","data":{"cpu_percent":1}}`},
		{"container stats missing id", `{"type":"container_stats","data":{"host_id":"h1"}}`},
		{"container stats missing host_id", `{"type":"container_stats","data":{"id":"abc"}}`},
		{"removal missing host_id", `{"type":"removal","data":{"scope":"host"}}`},
		{"removal unknown scope", `{"type":"removal","data":{"scope":"pod","host_id":"h1"}}`},
		{"container removal missing container_id", `{"type":"removal","data":{"scope":"container","host_id":"h1"}}`},
		{"wrong field type", `{"type":"host_metrics","data":{"host_id":"h1","cpu_percent":"lots"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.raw)); err == nil {
				t.Errorf("Decode(%s) succeeded, want error", tt.raw)
			}
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	in := HostSample{
		HostID:         "h1",
		CPUPercent:     10,
		MemPercent:     20,
		MemBytes:       1 << 20,
		NetBytesPerSec: 512,
		Timestamp:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	raw, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := out.(HostSample); got != in {
		t.Errorf("round trip = %+v, want %+v", got, in)
	}
}

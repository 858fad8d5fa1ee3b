package telemetry

import (
	"encoding/json"
	"fmt"
	"time"
)

// Frame type tags on the wire.
const (
	TypeHostMetrics    = "host_metrics"
	TypeContainerStats = "container_stats"
	TypeRemoval        = "removal"
)

// Removal scopes.
const (
	ScopeHost      = "host"
	ScopeContainer = "container"
)

// Frame is one decoded message from an agent stream. Exactly the three
// concrete types in this package implement it.
type Frame interface {
	frameKind() string
}

// HostSample carries one host-level metrics reading.
type HostSample struct {
	HostID         string    `json:"host_id"`
	CPUPercent     float64   `json:"cpu_percent"`
	MemPercent     float64   `json:"mem_percent"`
	MemBytes       int64     `json:"mem_bytes"`
	NetBytesPerSec float64   `json:"net_bytes_per_sec"`
	Timestamp      time.Time `json:"timestamp"`
}

// ContainerSample carries one container-level stats reading. Numeric fields
// are pointers because agents report null for containers that are not
// running; absence is a typed case, not a zero.
type ContainerSample struct {
	HostID        string   `json:"host_id"`
	ID            string   `json:"id"`
	ShortID       string   `json:"short_id,omitempty"`
	Name          string   `json:"name"`
	State         string   `json:"state"`
	Status        string   `json:"status"`
	CPUPercent    *float64 `json:"cpu_percent"`
	MemoryPercent *float64 `json:"memory_percent"`
	MemoryUsage   *int64   `json:"memory_usage"`
	NetworkRx     *int64   `json:"network_rx"`
	NetworkTx     *int64   `json:"network_tx"`
	WebUIURL      *string  `json:"web_ui_url"`
}

// Removal signals that the upstream deregistered a host or removed a
// container. ContainerID is set only for container scope.
type Removal struct {
	Scope       string `json:"scope"`
	HostID      string `json:"host_id"`
	ContainerID string `json:"container_id,omitempty"`
}

func (HostSample) frameKind() string      { return TypeHostMetrics }
func (ContainerSample) frameKind() string { return TypeContainerStats }
func (Removal) frameKind() string         { return TypeRemoval }

// envelope is the wire form: {"type": "...", "data": {...}}
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Decode parses one wire message into its typed frame. This is the single
// decode point: everything downstream works with the typed union. A frame
// missing required identifiers is rejected here so malformed input never
// reaches the cache.
func Decode(data []byte) (Frame, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid frame envelope: %w", err)
	}

	switch env.Type {
	case TypeHostMetrics:
		var f HostSample
		if err := json.Unmarshal(env.Data, &f); err != nil {
			return nil, fmt.Errorf("invalid host_metrics frame: %w", err)
		}
		if f.HostID == "" {
			return nil, fmt.Errorf("host_metrics frame missing host_id")
		}
		return f, nil

	case TypeContainerStats:
		var f ContainerSample
		if err := json.Unmarshal(env.Data, &f); err != nil {
			return nil, fmt.Errorf("invalid container_stats frame: %w", err)
		}
		if f.HostID == "" {
			return nil, fmt.Errorf("container_stats frame missing host_id")
		}
		if f.ID == "" {
			return nil, fmt.Errorf("container_stats frame missing id")
		}
		return f, nil

	case TypeRemoval:
		var f Removal
		if err := json.Unmarshal(env.Data, &f); err != nil {
			return nil, fmt.Errorf("invalid removal frame: %w", err)
		}
		if f.HostID == "" {
			return nil, fmt.Errorf("removal frame missing host_id")
		}
		switch f.Scope {
		case ScopeHost:
		case ScopeContainer:
			if f.ContainerID == "" {
				return nil, fmt.Errorf("container removal frame missing container_id")
			}
		default:
			return nil, fmt.Errorf("removal frame has unknown scope %q", f.Scope)
		}
		return f, nil

	default:
		return nil, fmt.Errorf("unknown frame type %q", env.Type)
	}
}

// Encode wraps a frame in its wire envelope. Used by the agent simulator
// and by tests; the aggregator only decodes.
func Encode(f Frame) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshal frame payload: %w", err)
	}
	return json.Marshal(envelope{Type: f.frameKind(), Data: data})
}

// Float64 returns a pointer to v. Convenience for building samples.
func Float64(v float64) *float64 { return &v }

// Int64 returns a pointer to v. Convenience for building samples.
func Int64(v int64) *int64 { return &v }

// String returns a pointer to v. Convenience for building samples.
func String(v string) *string { return &v }

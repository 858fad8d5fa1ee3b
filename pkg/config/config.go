package config

import "time"

// Server defaults
const (
	DefaultPort        = "8080"
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 10 * time.Second
	ShutdownTimeout    = 30 * time.Second
)

// Cache defaults
const (
	// DefaultSparklineCapacity is the number of samples kept per host metric
	// for trend charts. Chart width is a presentation contract: capacity is
	// fixed at cache construction and never resized.
	DefaultSparklineCapacity = 40

	// DefaultStaleAfter of zero keeps last-known-good samples forever.
	// A positive value makes reads older than the window report stale.
	DefaultStaleAfter = 0 * time.Second

	// Entity limits guard against unbounded map growth from a misbehaving
	// agent. Updates to already-tracked entities always pass.
	DefaultMaxHosts      = 256
	DefaultMaxContainers = 4096
)

// Derived view limits
const (
	DefaultTopContainers = 5
	MaxTopContainers     = 100
)

// WebSocket configuration (shared by the fan-out hub and the stream consumer)
const (
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSBroadcastBuffer = 256
	WSChannelBuffer   = 10
	WSWriteDeadline   = 10 * time.Second
	WSReadDeadline    = 60 * time.Second
	WSPingInterval    = 30 * time.Second
)

// Stream consumer reconnect backoff
const (
	StreamBackoffMin = 1 * time.Second
	StreamBackoffMax = 30 * time.Second
)

// Snapshot client
const (
	SnapshotTimeout = 10 * time.Second
)

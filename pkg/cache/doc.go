/*
Package cache is the real-time aggregation core of DockMon: a process-local,
last-value-wins view over the fleet telemetry stream.

# Data Flow

	decoded frame -> OnFrame -> entity stores / ring buffers -> scoped event
	                                  |
	          HostMetrics / HostSparklines / ContainerCounts /
	          TopContainers / AllContainers (computed on read)

Hosts are keyed by their opaque host id. Containers are keyed by the
composite form "host:container" built by CompositeKey, with container ids
truncated to the 12-character short form at the ingestion boundary. The
host prefix is load-bearing: container ids are not unique across hosts.

# Ownership

A Cache exclusively owns its stores and buffers. Writes funnel through
OnFrame (or UpsertHost/UpsertContainer/RemoveHost/RemoveContainer), reads
return copies, and derived views allocate fresh slices on every call, so
callers can cache results and compare them without ever observing a
mutation in place.

# Delivery Semantics

Best effort. Frames apply strictly in arrival order and the newest frame
wins even when its timestamp is older than the stored one. Entities are
evicted only by explicit removal frames; with StaleAfter configured, reads
flag silent entities as stale instead of dropping them.

# Usage

	c := cache.New(cache.Config{SparklineCapacity: 40})
	unsub := c.Subscribe(cache.Scope{HostID: "h1"}, func(ev cache.Event) {
	    // re-read the views named by ev.Keys
	})
	defer unsub()
	_ = c.OnFrame(frame)
*/
package cache

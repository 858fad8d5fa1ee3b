package cache

import (
	"log"

	"github.com/darthnorse/dockmon-sub004/pkg/telemetry"
)

// shortIDLen matches the Docker short-id convention. Container ids are
// truncated to this length at the ingestion boundary so the initial REST
// snapshot and the streamed deltas address the same logical container.
const shortIDLen = 12

// ShortID returns the 12-character short form of a container id. Inputs
// already at or below 12 characters are returned unchanged. Idempotent,
// never fails.
func ShortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

// CompositeKey builds the per-container lookup key. Container ids are not
// globally unique across hosts, so the host prefix is what keeps two hosts'
// containers with the same short id from colliding. Composite keys are the
// only key form used for container state.
func CompositeKey(hostID, containerID string) string {
	return hostID + ":" + ShortID(containerID)
}

// normalizeContainer shortens the id fields of a decoded sample. Other
// fields are left untouched. Operates on the cache's own copy.
func normalizeContainer(c *telemetry.ContainerSample) {
	c.ID = ShortID(c.ID)
	if c.ShortID == "" {
		c.ShortID = c.ID
	} else {
		c.ShortID = ShortID(c.ShortID)
	}
}

// warnLongID is a correctness tripwire: a long-form id downstream of
// normalization means some write path skipped the normalizer. Logging only,
// never behavior-affecting, and only when debug is enabled.
func (c *Cache) warnLongID(where, id string) {
	if c.cfg.Debug && len(id) > shortIDLen {
		log.Printf("cache: long container id %q reached %s past normalization", id, where)
	}
}

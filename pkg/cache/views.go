package cache

import (
	"sort"
	"strings"

	"github.com/darthnorse/dockmon-sub004/pkg/config"
	"github.com/darthnorse/dockmon-sub004/pkg/telemetry"
)

// HostMetricsView is the latest host sample plus the staleness flag.
type HostMetricsView struct {
	telemetry.HostSample
	Stale bool `json:"stale"`
}

// SparklinesView holds the three host trend windows, oldest sample first.
type SparklinesView struct {
	CPU []float64 `json:"cpu"`
	Mem []float64 `json:"mem"`
	Net []float64 `json:"net"`
}

// CountsView aggregates container states for one host.
type CountsView struct {
	Total   int `json:"total"`
	Running int `json:"running"`
	Stopped int `json:"stopped"`
}

// HostMetrics returns the latest sample for a host. The second return is
// false when the host has never been observed.
func (c *Cache) HostMetrics(hostID string) (HostMetricsView, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.hosts[hostID]
	if !ok {
		return HostMetricsView{}, false
	}
	return HostMetricsView{
		HostSample: entry.sample,
		Stale:      c.stale(entry.lastSeen),
	}, true
}

// HostSparklines returns fresh copies of the host's cpu, mem and net trend
// windows. Consumers may rely on the slices never being mutated afterward.
func (c *Cache) HostSparklines(hostID string) (SparklinesView, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.hosts[hostID]
	if !ok {
		return SparklinesView{}, false
	}
	return SparklinesView{
		CPU: entry.cpu.values(),
		Mem: entry.mem.values(),
		Net: entry.net.values(),
	}, true
}

// ContainerCounts scans the container store for one host and tallies
// states. The scan is O(total containers); fleet cardinality in this
// domain is small enough that a per-host index is not worth keeping.
// A host with no containers yields the zero value.
func (c *Cache) ContainerCounts(hostID string) CountsView {
	prefix := hostID + ":"

	c.mu.RLock()
	defer c.mu.RUnlock()

	var counts CountsView
	for key, entry := range c.containers {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		counts.Total++
		if entry.sample.State == "running" {
			counts.Running++
		} else {
			counts.Stopped++
		}
	}
	return counts
}

// TopContainers returns up to n containers for a host ordered by cpu
// descending, ties broken by name ascending so repeated reads rank
// identically. n is clamped to the configured maximum.
func (c *Cache) TopContainers(hostID string, n int) []telemetry.ContainerSample {
	if n <= 0 {
		n = config.DefaultTopContainers
	}
	if n > config.MaxTopContainers {
		n = config.MaxTopContainers
	}

	out := c.AllContainers(hostID)
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := cpuOf(out[i]), cpuOf(out[j])
		if ci != cj {
			return ci > cj
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// AllContainers returns every container tracked for a host, sorted by name
// for a deterministic baseline; display-specific ordering is the caller's
// business. Always a fresh slice of copies.
func (c *Cache) AllContainers(hostID string) []telemetry.ContainerSample {
	prefix := hostID + ":"

	c.mu.RLock()
	out := make([]telemetry.ContainerSample, 0)
	for key, entry := range c.containers {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		c.warnLongID("AllContainers", entry.sample.ID)
		out = append(out, entry.sample)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HostIDs returns the ids of all tracked hosts, sorted.
func (c *Cache) HostIDs() []string {
	c.mu.RLock()
	ids := make([]string, 0, len(c.hosts))
	for id := range c.hosts {
		ids = append(ids, id)
	}
	c.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

func cpuOf(s telemetry.ContainerSample) float64 {
	if s.CPUPercent == nil {
		return 0
	}
	return *s.CPUPercent
}

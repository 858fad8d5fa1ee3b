package cache

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/darthnorse/dockmon-sub004/pkg/config"
	"github.com/darthnorse/dockmon-sub004/pkg/telemetry"
)

// ErrNilFrame is returned when OnFrame is handed a nil frame.
var ErrNilFrame = errors.New("nil frame")

// Config tunes a Cache. Zero values fall back to the defaults in
// pkg/config.
type Config struct {
	// SparklineCapacity is the fixed window length of each host trend
	// buffer (cpu, mem, net).
	SparklineCapacity int

	// StaleAfter, when positive, makes reads report entities with no frame
	// inside the window as stale. Zero keeps last-known-good data forever.
	// The cache never auto-evicts on staleness either way; eviction only
	// happens on explicit removal frames.
	StaleAfter time.Duration

	// MaxHosts and MaxContainers bound how many distinct entities are
	// tracked. Frames that would create an entity past the limit are
	// dropped.
	MaxHosts      int
	MaxContainers int

	// Debug enables ingestion-side drop logging and the long-id tripwire.
	Debug bool
}

func (c Config) withDefaults() Config {
	if c.SparklineCapacity <= 0 {
		c.SparklineCapacity = config.DefaultSparklineCapacity
	}
	if c.MaxHosts <= 0 {
		c.MaxHosts = config.DefaultMaxHosts
	}
	if c.MaxContainers <= 0 {
		c.MaxContainers = config.DefaultMaxContainers
	}
	return c
}

// hostEntry pairs the latest host sample with its three trend buffers.
type hostEntry struct {
	sample   telemetry.HostSample
	lastSeen time.Time
	cpu      *ring
	mem      *ring
	net      *ring
}

// containerEntry holds the latest sample for one composite key. Containers
// carry no trend buffers; no consumer charts per-container history.
type containerEntry struct {
	sample   telemetry.ContainerSample
	lastSeen time.Time
}

// Cache is the process-local aggregation store for fleet telemetry. It is
// the exclusive owner of all entity state: every write funnels through
// OnFrame (or the typed upsert/remove methods it dispatches to), and every
// read hands out copies. Safe for one ingesting goroutine and any number
// of concurrent readers.
type Cache struct {
	cfg Config

	mu         sync.RWMutex
	hosts      map[string]*hostEntry
	containers map[string]containerEntry

	hostLimit      *entityLimiter
	containerLimit *entityLimiter

	subMu   sync.RWMutex
	subs    map[int]*subscription
	nextSub int

	// now is swapped in tests to drive the staleness clock.
	now func() time.Time
}

// New builds an empty cache. Instances are independent; there is no
// package-level singleton.
func New(cfg Config) *Cache {
	cfg = cfg.withDefaults()
	return &Cache{
		cfg:            cfg,
		hosts:          make(map[string]*hostEntry),
		containers:     make(map[string]containerEntry),
		hostLimit:      newEntityLimiter(cfg.MaxHosts),
		containerLimit: newEntityLimiter(cfg.MaxContainers),
		subs:           make(map[int]*subscription),
		now:            time.Now,
	}
}

// OnFrame applies one decoded frame in arrival order. Last received wins,
// even when its timestamp is older than what is stored; the stream is
// assumed in-order per entity and the cache does not re-sort. A returned
// error means the frame was dropped; state for other entities is never
// affected.
func (c *Cache) OnFrame(frame telemetry.Frame) error {
	switch f := frame.(type) {
	case telemetry.HostSample:
		return c.UpsertHost(f)
	case telemetry.ContainerSample:
		return c.UpsertContainer(f)
	case telemetry.Removal:
		switch f.Scope {
		case telemetry.ScopeHost:
			c.RemoveHost(f.HostID)
		case telemetry.ScopeContainer:
			c.RemoveContainer(f.HostID, f.ContainerID)
		default:
			return fmt.Errorf("removal frame with unknown scope %q", f.Scope)
		}
		return nil
	case nil:
		return ErrNilFrame
	default:
		return fmt.Errorf("unknown frame type %T", frame)
	}
}

// UpsertHost overwrites the latest sample for a host and pushes the cpu,
// mem and net readings onto its trend buffers. The entry and its buffers
// are created lazily on first observation.
func (c *Cache) UpsertHost(s telemetry.HostSample) error {
	if s.HostID == "" {
		return fmt.Errorf("host sample missing host_id")
	}

	c.mu.Lock()
	entry, ok := c.hosts[s.HostID]
	if !ok {
		if !c.hostLimit.admit(s.HostID) {
			c.mu.Unlock()
			if c.cfg.Debug {
				log.Printf("cache: dropping host_metrics for %q: %v", s.HostID, ErrHostLimit)
			}
			return ErrHostLimit
		}
		entry = &hostEntry{
			cpu: newRing(c.cfg.SparklineCapacity),
			mem: newRing(c.cfg.SparklineCapacity),
			net: newRing(c.cfg.SparklineCapacity),
		}
		c.hosts[s.HostID] = entry
	}
	entry.sample = s
	entry.lastSeen = c.now()
	entry.cpu.push(s.CPUPercent)
	entry.mem.push(s.MemPercent)
	entry.net.push(s.NetBytesPerSec)
	c.mu.Unlock()

	c.notify(Event{HostID: s.HostID, Keys: []string{s.HostID}, Kind: EventUpdate})
	return nil
}

// UpsertContainer normalizes the sample's ids and overwrites the latest
// value under its composite key.
func (c *Cache) UpsertContainer(s telemetry.ContainerSample) error {
	if s.HostID == "" || s.ID == "" {
		return fmt.Errorf("container sample missing host_id or id")
	}
	normalizeContainer(&s)
	key := CompositeKey(s.HostID, s.ID)

	c.mu.Lock()
	if _, ok := c.containers[key]; !ok {
		if !c.containerLimit.admit(key) {
			c.mu.Unlock()
			if c.cfg.Debug {
				log.Printf("cache: dropping container_stats for %q: %v", key, ErrContainerLimit)
			}
			return ErrContainerLimit
		}
	}
	c.containers[key] = containerEntry{sample: s, lastSeen: c.now()}
	c.mu.Unlock()

	c.notify(Event{HostID: s.HostID, Keys: []string{key}, Kind: EventUpdate})
	return nil
}

// RemoveHost evicts a host and every container tracked under it. Invoked
// on explicit host deregistration, never on mere staleness. Unknown hosts
// are a no-op.
func (c *Cache) RemoveHost(hostID string) {
	prefix := hostID + ":"

	c.mu.Lock()
	_, hadHost := c.hosts[hostID]
	var removed []string
	if hadHost {
		delete(c.hosts, hostID)
		c.hostLimit.forget(hostID)
		removed = append(removed, hostID)
	}
	for key := range c.containers {
		if strings.HasPrefix(key, prefix) {
			delete(c.containers, key)
			c.containerLimit.forget(key)
			removed = append(removed, key)
		}
	}
	c.mu.Unlock()

	if len(removed) > 0 {
		c.notify(Event{HostID: hostID, Keys: removed, Kind: EventRemoval})
	}
}

// RemoveContainer evicts a single container by host and id. The id may be
// long-form; it is normalized before lookup. Unknown keys are a no-op.
func (c *Cache) RemoveContainer(hostID, containerID string) {
	key := CompositeKey(hostID, containerID)

	c.mu.Lock()
	_, ok := c.containers[key]
	if ok {
		delete(c.containers, key)
		c.containerLimit.forget(key)
	}
	c.mu.Unlock()

	if ok {
		c.notify(Event{HostID: hostID, Keys: []string{key}, Kind: EventRemoval})
	}
}

// stale reports whether lastSeen falls outside the configured window.
// Callers hold at least the read lock.
func (c *Cache) stale(lastSeen time.Time) bool {
	if c.cfg.StaleAfter <= 0 {
		return false
	}
	return c.now().Sub(lastSeen) > c.cfg.StaleAfter
}

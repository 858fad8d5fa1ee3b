// Package stream connects the cache to an agent's telemetry feed. The
// consumer dials the agent's WebSocket endpoint, decodes each message into
// a typed frame and hands it to the cache synchronously, so frames apply
// in arrival order. The cache itself never touches the network.
package stream

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/darthnorse/dockmon-sub004/pkg/cache"
	"github.com/darthnorse/dockmon-sub004/pkg/config"
	"github.com/darthnorse/dockmon-sub004/pkg/telemetry"
)

// Config describes one agent stream.
type Config struct {
	// URL is the agent's stream endpoint, e.g. ws://agent:9090/v1/stream.
	URL string

	// Resync, when set, runs after every (re)connect before frames are
	// consumed. Wired to the snapshot client so the cache is re-primed
	// after a gap; failures are logged and the stream proceeds anyway.
	Resync func(ctx context.Context) error

	// Backoff bounds for reconnect attempts. Zero values use the defaults
	// from pkg/config.
	BackoffMin time.Duration
	BackoffMax time.Duration
}

// Consumer feeds one agent's frames into a cache, reconnecting forever
// until its context is cancelled.
type Consumer struct {
	cfg    Config
	cache  *cache.Cache
	dialer *websocket.Dialer

	decodeErrs atomic.Int64
	dropped    atomic.Int64
}

// New creates a consumer for one agent stream.
func New(cfg Config, c *cache.Cache) *Consumer {
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = config.StreamBackoffMin
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = config.StreamBackoffMax
	}
	return &Consumer{
		cfg:   cfg,
		cache: c,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   config.WSReadBufferSize,
			WriteBufferSize:  config.WSWriteBufferSize,
		},
	}
}

// DecodeErrors returns how many messages failed to decode since start.
func (c *Consumer) DecodeErrors() int64 { return c.decodeErrs.Load() }

// Dropped returns how many well-formed frames the cache rejected.
func (c *Consumer) Dropped() int64 { return c.dropped.Load() }

// Run dials, consumes and reconnects until ctx is cancelled. Connection
// failures back off exponentially up to the configured cap; a successful
// session resets the backoff.
func (c *Consumer) Run(ctx context.Context) {
	backoff := c.cfg.BackoffMin
	for {
		if ctx.Err() != nil {
			return
		}

		conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			if resp != nil {
				resp.Body.Close()
			}
			log.Printf("stream: dial %s failed: %v (retrying in %v)", c.cfg.URL, err, backoff)
			if !sleep(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, c.cfg.BackoffMax)
			continue
		}
		backoff = c.cfg.BackoffMin

		if c.cfg.Resync != nil {
			if err := c.cfg.Resync(ctx); err != nil {
				log.Printf("stream: resync for %s failed: %v", c.cfg.URL, err)
			}
		}

		c.consume(ctx, conn)
		conn.Close()
	}
}

// consume reads frames from one connection until it breaks or ctx ends.
func (c *Consumer) consume(ctx context.Context, conn *websocket.Conn) {
	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		ticker := time.NewTicker(config.WSPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
		return nil
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && ctx.Err() == nil {
				log.Printf("stream: read from %s: %v", c.cfg.URL, err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))

		frame, err := telemetry.Decode(data)
		if err != nil {
			// A malformed message affects that frame only; the stream
			// stays up.
			c.decodeErrs.Add(1)
			log.Printf("stream: dropping malformed frame from %s: %v", c.cfg.URL, err)
			continue
		}
		if err := c.cache.OnFrame(frame); err != nil {
			c.dropped.Add(1)
			log.Printf("stream: cache rejected frame from %s: %v", c.cfg.URL, err)
		}
	}
}

// sleep waits d or until ctx is done; reports false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

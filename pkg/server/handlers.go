package server

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/darthnorse/dockmon-sub004/pkg/cache"
	"github.com/darthnorse/dockmon-sub004/pkg/config"
	"github.com/darthnorse/dockmon-sub004/pkg/httpx"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// No Origin header means a non-browser client.
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
	ReadBufferSize:  config.WSReadBufferSize,
	WriteBufferSize: config.WSWriteBufferSize,
}

var startTime = time.Now()

// Handler serves the read API over one cache instance.
type Handler struct {
	cache *cache.Cache
}

// NewHandler creates the read-API handler.
func NewHandler(c *cache.Cache) *Handler {
	return &Handler{cache: c}
}

// HandleHosts returns the ids of every tracked host.
func (h *Handler) HandleHosts(w http.ResponseWriter, r *http.Request) {
	ids := h.cache.HostIDs()
	httpx.RespondJSON(w, http.StatusOK, map[string]any{
		"hosts": ids,
		"count": len(ids),
	})
}

// HandleHostMetrics returns the latest sample for one host.
func (h *Handler) HandleHostMetrics(w http.ResponseWriter, r *http.Request) {
	hostID := mux.Vars(r)["id"]
	view, ok := h.cache.HostMetrics(hostID)
	if !ok {
		httpx.RespondErrorString(w, http.StatusNotFound, "no data for host "+hostID)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, view)
}

// HandleHostSparklines returns the host's cpu/mem/net trend windows.
func (h *Handler) HandleHostSparklines(w http.ResponseWriter, r *http.Request) {
	hostID := mux.Vars(r)["id"]
	view, ok := h.cache.HostSparklines(hostID)
	if !ok {
		httpx.RespondErrorString(w, http.StatusNotFound, "no data for host "+hostID)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, view)
}

// HandleContainers returns every container tracked for a host. An unknown
// host is an empty list, not an error: consumers may ask before the first
// frame arrives.
func (h *Handler) HandleContainers(w http.ResponseWriter, r *http.Request) {
	hostID := mux.Vars(r)["id"]
	containers := h.cache.AllContainers(hostID)
	httpx.RespondJSON(w, http.StatusOK, map[string]any{
		"containers": containers,
		"count":      len(containers),
	})
}

// HandleTopContainers returns the host's top-n containers by cpu.
func (h *Handler) HandleTopContainers(w http.ResponseWriter, r *http.Request) {
	hostID := mux.Vars(r)["id"]

	n := config.DefaultTopContainers
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httpx.RespondErrorString(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = parsed
	}

	httpx.RespondJSON(w, http.StatusOK, map[string]any{
		"containers": h.cache.TopContainers(hostID, n),
	})
}

// HandleContainerCounts returns running/stopped/total counts for a host.
func (h *Handler) HandleContainerCounts(w http.ResponseWriter, r *http.Request) {
	hostID := mux.Vars(r)["id"]
	httpx.RespondJSON(w, http.StatusOK, h.cache.ContainerCounts(hostID))
}

// HandleHealth returns service liveness.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httpx.RespondJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"uptime": time.Since(startTime).String(),
	})
}

// HandleWebSocket upgrades the connection and subscribes it to change
// events, scoped to the ?host= query parameter when present.
func (h *Handler) HandleWebSocket(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("server: websocket upgrade failed: %v", err)
			return
		}

		c := &client{
			conn:  conn,
			scope: cache.Scope{HostID: r.URL.Query().Get("host")},
		}
		hub.register <- c

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Keepalive pings; the hub writes data frames.
		go func() {
			ticker := time.NewTicker(config.WSPingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						return
					}
				}
			}
		}()

		defer func() {
			cancel()
			hub.unregister <- c
		}()

		conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
			return nil
		})

		// Read loop exists to process control frames and notice the close.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("server: websocket error: %v", err)
				}
				break
			}
		}
	}
}

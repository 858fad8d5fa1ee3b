// agentsim is a fake DockMon agent for local development. It serves the
// snapshot endpoints and a frame stream with synthetic host and container
// telemetry, including occasional state flips and removal frames, so the
// aggregator can be exercised without a real fleet.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/darthnorse/dockmon-sub004/pkg/httpx"
	"github.com/darthnorse/dockmon-sub004/pkg/telemetry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

type simulator struct {
	mu         sync.Mutex
	hosts      []string
	containers map[string][]telemetry.ContainerSample // host -> containers
	cpu        map[string]float64                     // random-walk state per host
}

func newSimulator(hostCount, containersPerHost int) *simulator {
	s := &simulator{
		containers: make(map[string][]telemetry.ContainerSample),
		cpu:        make(map[string]float64),
	}
	for i := 1; i <= hostCount; i++ {
		hostID := fmt.Sprintf("sim-%d", i)
		s.hosts = append(s.hosts, hostID)
		s.cpu[hostID] = 20 + rand.Float64()*30
		for j := 0; j < containersPerHost; j++ {
			// Long-form ids on purpose: the aggregator normalizes them.
			id := fmt.Sprintf("%016x%016x", rand.Uint64(), rand.Uint64())
			s.containers[hostID] = append(s.containers[hostID], telemetry.ContainerSample{
				HostID:     hostID,
				ID:         id,
				Name:       fmt.Sprintf("svc-%d-%d", i, j),
				State:      "running",
				Status:     "Up 1 second",
				CPUPercent: telemetry.Float64(rand.Float64() * 10),
			})
		}
	}
	return s
}

// tick advances the simulation and returns the frames for this interval.
func (s *simulator) tick() []telemetry.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	var frames []telemetry.Frame
	now := time.Now()

	for _, hostID := range s.hosts {
		s.cpu[hostID] += rand.Float64()*10 - 5
		if s.cpu[hostID] < 0 {
			s.cpu[hostID] = 0
		}
		if s.cpu[hostID] > 100 {
			s.cpu[hostID] = 100
		}
		frames = append(frames, telemetry.HostSample{
			HostID:         hostID,
			CPUPercent:     s.cpu[hostID],
			MemPercent:     30 + rand.Float64()*40,
			MemBytes:       int64(8<<30) + rand.Int63n(4<<30),
			NetBytesPerSec: rand.Float64() * 1e6,
			Timestamp:      now,
		})

		list := s.containers[hostID]
		for i := range list {
			// Rarely flip a container between running and exited.
			if rand.Float64() < 0.02 {
				if list[i].State == "running" {
					list[i].State = "exited"
					list[i].Status = "Exited (0) 1 second ago"
					list[i].CPUPercent = nil
				} else {
					list[i].State = "running"
					list[i].Status = "Up 1 second"
					list[i].CPUPercent = telemetry.Float64(0)
				}
			}
			if list[i].State == "running" {
				list[i].CPUPercent = telemetry.Float64(rand.Float64() * 25)
			}
			frames = append(frames, list[i])
		}

		// Very rarely remove a container outright.
		if len(list) > 1 && rand.Float64() < 0.01 {
			victim := list[len(list)-1]
			s.containers[hostID] = list[:len(list)-1]
			frames = append(frames, telemetry.Removal{
				Scope:       telemetry.ScopeContainer,
				HostID:      hostID,
				ContainerID: victim.ID,
			})
		}
	}
	return frames
}

func (s *simulator) handleHosts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	hosts := make([]telemetry.HostSample, 0, len(s.hosts))
	for _, hostID := range s.hosts {
		hosts = append(hosts, telemetry.HostSample{
			HostID:     hostID,
			CPUPercent: s.cpu[hostID],
			Timestamp:  time.Now(),
		})
	}
	s.mu.Unlock()
	httpx.RespondJSON(w, http.StatusOK, map[string]any{"hosts": hosts})
}

func (s *simulator) handleContainers(w http.ResponseWriter, r *http.Request) {
	hostID := mux.Vars(r)["id"]
	s.mu.Lock()
	containers := append([]telemetry.ContainerSample(nil), s.containers[hostID]...)
	s.mu.Unlock()
	httpx.RespondJSON(w, http.StatusOK, map[string]any{"containers": containers})
}

func (s *simulator) handleStream(interval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		log.Printf("stream client connected from %s", r.RemoteAddr)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				for _, frame := range s.tick() {
					data, err := telemetry.Encode(frame)
					if err != nil {
						log.Printf("encode frame: %v", err)
						continue
					}
					conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
						log.Printf("stream client gone: %v", err)
						return
					}
				}
			}
		}
	}
}

func main() {
	addr := flag.String("addr", ":9090", "listen address")
	hostCount := flag.Int("hosts", 3, "simulated host count")
	containersPerHost := flag.Int("containers", 5, "containers per host")
	interval := flag.Duration("interval", 2*time.Second, "frame emission interval")
	flag.Parse()

	sim := newSimulator(*hostCount, *containersPerHost)

	router := mux.NewRouter()
	api := router.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/hosts", sim.handleHosts).Methods("GET")
	api.HandleFunc("/hosts/{id}/containers", sim.handleContainers).Methods("GET")
	api.HandleFunc("/stream", sim.handleStream(*interval)).Methods("GET")

	srv := &http.Server{Addr: *addr, Handler: router}
	go func() {
		log.Printf("agentsim listening on %s (%d hosts, %d containers each)", *addr, *hostCount, *containersPerHost)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/darthnorse/dockmon-sub004/pkg/cache"
	"github.com/darthnorse/dockmon-sub004/pkg/config"
	"github.com/darthnorse/dockmon-sub004/pkg/server"
	"github.com/darthnorse/dockmon-sub004/pkg/snapshot"
	"github.com/darthnorse/dockmon-sub004/pkg/stream"
)

func main() {
	log.Println("Starting DockMon aggregator...")

	// Configuration from environment:
	//   PORT / DOCKMON_PORT      listen port
	//   DOCKMON_AGENTS           comma-separated agent base URLs
	//   DOCKMON_API_KEY          bearer token for agent requests
	//   DOCKMON_SPARKLINE_CAP    samples per host trend window
	//   DOCKMON_STALE_AFTER_SEC  staleness window, 0 disables
	//   DOCKMON_DEBUG            enable ingestion drop logging
	port := getEnv("DOCKMON_PORT", getEnv("PORT", config.DefaultPort))
	agents := splitList(os.Getenv("DOCKMON_AGENTS"))
	apiKey := os.Getenv("DOCKMON_API_KEY")

	store := cache.New(cache.Config{
		SparklineCapacity: int(getEnvInt64("DOCKMON_SPARKLINE_CAP", config.DefaultSparklineCapacity)),
		StaleAfter:        time.Duration(getEnvInt64("DOCKMON_STALE_AFTER_SEC", 0)) * time.Second,
		Debug:             os.Getenv("DOCKMON_DEBUG") != "",
	})
	log.Printf("Cache created (agents: %d)", len(agents))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	hub := server.NewHub()
	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()

	// Every cache mutation reaches the hub; the hub filters per client.
	unsubscribe := store.Subscribe(cache.Scope{}, hub.Publish)
	defer unsubscribe()
	log.Println("WebSocket hub started")

	for _, agent := range agents {
		client := snapshot.New(agent, apiKey)
		consumer := stream.New(stream.Config{
			URL: wsURL(agent) + "/v1/stream",
			Resync: func(ctx context.Context) error {
				return client.Prime(ctx, store)
			},
		}, store)

		wg.Add(1)
		go func(agent string) {
			defer wg.Done()
			log.Printf("Consuming stream from %s", agent)
			consumer.Run(ctx)
		}(agent)
	}

	handler := server.NewHandler(store)
	router := server.NewRouter(handler, hub)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
	}

	go func() {
		log.Printf("Read API listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("Shutting down...")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
	wg.Wait()
	log.Println("Shutdown complete")
}

// wsURL converts an http(s) base URL to its ws(s) form.
func wsURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
		log.Printf("Invalid value for %s: %q, using default %d", key, val, defaultValue)
	}
	return defaultValue
}

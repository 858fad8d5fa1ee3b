package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/darthnorse/dockmon-sub004/pkg/cache"
	"github.com/darthnorse/dockmon-sub004/pkg/telemetry"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// fakeAgent serves one WebSocket session that writes the given messages
// and then holds the connection open until the test finishes.
func fakeAgent(t *testing.T, messages [][]byte, done chan struct{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, msg := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
		<-done
	}))
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestConsumer_DeliversFramesToCache(t *testing.T) {
	hostMsg, err := telemetry.Encode(telemetry.HostSample{HostID: "h1", CPUPercent: 42})
	require.NoError(t, err)
	containerMsg, err := telemetry.Encode(telemetry.ContainerSample{
		HostID: "h1", ID: "abc123def456789fedcba", Name: "web", State: "running",
	})
	require.NoError(t, err)

	done := make(chan struct{})
	defer close(done)
	srv := fakeAgent(t, [][]byte{hostMsg, containerMsg}, done)
	defer srv.Close()

	store := cache.New(cache.Config{})
	consumer := New(Config{URL: wsURL(srv.URL)}, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go consumer.Run(ctx)

	require.Eventually(t, func() bool {
		_, ok := store.HostMetrics("h1")
		return ok && len(store.AllContainers("h1")) == 1
	}, 3*time.Second, 10*time.Millisecond)

	view, _ := store.HostMetrics("h1")
	require.Equal(t, 42.0, view.CPUPercent)
	// The consumer feeds frames through the normalizing ingestion path.
	require.Equal(t, "abc123def456", store.AllContainers("h1")[0].ID)
}

func TestConsumer_MalformedFrameDoesNotKillStream(t *testing.T) {
	goodMsg, err := telemetry.Encode(telemetry.HostSample{HostID: "h1", CPUPercent: 1})
	require.NoError(t, err)

	done := make(chan struct{})
	defer close(done)
	srv := fakeAgent(t, [][]byte{[]byte("not a frame"), goodMsg}, done)
	defer srv.Close()

	store := cache.New(cache.Config{})
	consumer := New(Config{URL: wsURL(srv.URL)}, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go consumer.Run(ctx)

	// The good frame after the malformed one still lands.
	require.Eventually(t, func() bool {
		_, ok := store.HostMetrics("h1")
		return ok
	}, 3*time.Second, 10*time.Millisecond)
	require.Equal(t, int64(1), consumer.DecodeErrors())
}

func TestConsumer_ResyncRunsOnConnect(t *testing.T) {
	done := make(chan struct{})
	defer close(done)
	srv := fakeAgent(t, nil, done)
	defer srv.Close()

	var resyncs atomic.Int64
	store := cache.New(cache.Config{})
	consumer := New(Config{
		URL: wsURL(srv.URL),
		Resync: func(ctx context.Context) error {
			resyncs.Add(1)
			return nil
		},
	}, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go consumer.Run(ctx)

	require.Eventually(t, func() bool {
		return resyncs.Load() == 1
	}, 3*time.Second, 10*time.Millisecond)
}

func TestConsumer_StopsOnCancel(t *testing.T) {
	store := cache.New(cache.Config{})
	// Nothing listens on this address; the consumer sits in backoff.
	consumer := New(Config{
		URL:        "ws://127.0.0.1:1/v1/stream",
		BackoffMin: 10 * time.Millisecond,
		BackoffMax: 20 * time.Millisecond,
	}, store)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		consumer.Run(ctx)
		close(stopped)
	}()

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop after cancellation")
	}
}

package snapshot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/darthnorse/dockmon-sub004/pkg/cache"
)

func fakeAgentAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/hosts", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"hosts":[{"host_id":"h1","cpu_percent":12.5,"mem_percent":40,"mem_bytes":1024,"net_bytes_per_sec":100}]}`))
	})
	mux.HandleFunc("/v1/hosts/h1/containers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// Long-form id, as agents report from their container runtime.
		w.Write([]byte(`{"containers":[{"host_id":"h1","id":"abc123def456789fedcba","name":"web","state":"running","status":"Up 1 hour","cpu_percent":3.5}]}`))
	})
	return httptest.NewServer(mux)
}

func TestClient_HostsAndContainers(t *testing.T) {
	srv := fakeAgentAPI(t)
	defer srv.Close()

	client := New(srv.URL, "")
	ctx := context.Background()

	hosts, err := client.Hosts(ctx)
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	require.Equal(t, "h1", hosts[0].HostID)
	require.Equal(t, 12.5, hosts[0].CPUPercent)

	containers, err := client.Containers(ctx, "h1")
	require.NoError(t, err)
	require.Len(t, containers, 1)
	require.Equal(t, "web", containers[0].Name)
}

func TestClient_PrimeFillsCache(t *testing.T) {
	srv := fakeAgentAPI(t)
	defer srv.Close()

	store := cache.New(cache.Config{})
	require.NoError(t, New(srv.URL, "").Prime(context.Background(), store))

	view, ok := store.HostMetrics("h1")
	require.True(t, ok)
	require.Equal(t, 12.5, view.CPUPercent)

	containers := store.AllContainers("h1")
	require.Len(t, containers, 1)
	// Snapshot ids go through the same normalization as streamed frames.
	require.Equal(t, "abc123def456", containers[0].ID)
}

func TestClient_SendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"hosts":[]}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "secret").Hosts(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer secret", gotAuth)
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").Hosts(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 500")
}

// Package snapshot fetches the one-shot host and container lists from an
// agent's REST API. It is used to fill the cache before the stream
// delivers its first frame and to re-prime after a reconnect. Results are
// fed through the same OnFrame path as streamed deltas, so both origins
// share one normalization boundary.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/darthnorse/dockmon-sub004/pkg/cache"
	"github.com/darthnorse/dockmon-sub004/pkg/config"
	"github.com/darthnorse/dockmon-sub004/pkg/telemetry"
)

// Client is a REST client for one agent.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New creates a client for the agent at baseURL, e.g. http://agent:9090.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: config.SnapshotTimeout},
	}
}

type hostsResponse struct {
	Hosts []telemetry.HostSample `json:"hosts"`
}

type containersResponse struct {
	Containers []telemetry.ContainerSample `json:"containers"`
}

// Hosts fetches the agent's current host list.
func (c *Client) Hosts(ctx context.Context) ([]telemetry.HostSample, error) {
	var resp hostsResponse
	if err := c.get(ctx, "/v1/hosts", &resp); err != nil {
		return nil, err
	}
	return resp.Hosts, nil
}

// Containers fetches the container list for one host.
func (c *Client) Containers(ctx context.Context, hostID string) ([]telemetry.ContainerSample, error) {
	var resp containersResponse
	if err := c.get(ctx, "/v1/hosts/"+hostID+"/containers", &resp); err != nil {
		return nil, err
	}
	return resp.Containers, nil
}

// Prime loads the full snapshot into the cache. Individual rejected frames
// (entity limits) are skipped; a transport or decode failure aborts.
func (c *Client) Prime(ctx context.Context, store *cache.Cache) error {
	hosts, err := c.Hosts(ctx)
	if err != nil {
		return fmt.Errorf("fetch hosts: %w", err)
	}
	for _, h := range hosts {
		if err := store.OnFrame(h); err != nil {
			continue
		}
		containers, err := c.Containers(ctx, h.HostID)
		if err != nil {
			return fmt.Errorf("fetch containers for %s: %w", h.HostID, err)
		}
		for _, cs := range containers {
			_ = store.OnFrame(cs)
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request %s failed with status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

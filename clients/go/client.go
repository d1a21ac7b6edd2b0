package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrNotFound is returned when the server answers 404, e.g. by Delete for a
// key that does not exist. Get reports a missing key as found == false with
// a nil error instead.
var ErrNotFound = errors.New("placementd: key not found")

// Client is a thin SDK over a placementd node's HTTP admin API.
type Client struct {
	baseURL string
	http    *http.Client
}

// Options control Client behavior.
type Options struct {
	// Timeout bounds each request. Defaults to 10s.
	Timeout time.Duration
}

// New returns a Client talking to the placementd node at baseURL
// (e.g. "http://localhost:9000").
func New(baseURL string, opts *Options) *Client {
	if opts == nil {
		opts = &Options{Timeout: 10 * time.Second}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: opts.Timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("placementd: %s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("placementd: %s", resp.Status)
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// Get fetches a value by key. found is false, with a nil error, if the key
// does not exist.
func (c *Client) Get(ctx context.Context, key string) (value string, found bool, err error) {
	var resp struct {
		Value string `json:"value"`
	}
	err = c.do(ctx, http.MethodGet, "/v1/kv/"+url.PathEscape(key), nil, &resp)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return resp.Value, true, nil
}

// Set stores a value for key, with an optional TTL (zero means no expiry).
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	req := struct {
		Value     string `json:"value"`
		TTLSecond int    `json:"ttl_seconds"`
	}{Value: value, TTLSecond: int(ttl.Seconds())}
	return c.do(ctx, http.MethodPut, "/v1/kv/"+url.PathEscape(key), req, nil)
}

// Delete removes a key.
func (c *Client) Delete(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodDelete, "/v1/kv/"+url.PathEscape(key), nil, nil)
}

// Owners returns the node IDs currently responsible for key in the
// placement engine's bin table.
func (c *Client) Owners(ctx context.Context, key string) ([]string, error) {
	var resp struct {
		Owners []string `json:"owners"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/placement/owners/"+url.PathEscape(key), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Owners, nil
}

// Node describes a cluster member as returned by Nodes.
type Node struct {
	ID       string `json:"id"`
	Address  string `json:"address"`
	IsLeader bool   `json:"is_leader"`
	State    string `json:"state"`
	LastSeen int64  `json:"last_seen"`
}

// Nodes lists the cluster's known members.
func (c *Client) Nodes(ctx context.Context) ([]Node, error) {
	var nodes []Node
	if err := c.do(ctx, http.MethodGet, "/v1/cluster/nodes", nil, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

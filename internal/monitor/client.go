// Package monitor renders a live terminal dashboard of a folio server's
// inbox: unread counts, replication state and the most recent threads.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fyrsmithlabs/folio/internal/inbox"
)

const (
	passwordHeader = "X-Folio-Password"
	recentLimit    = 5
)

// Client polls the folio HTTP API.
type Client struct {
	baseURL  string
	password string
	client   *http.Client
	now      func() time.Time
}

// Snapshot is one poll of the server.
type Snapshot struct {
	Status           string
	Version          string
	Mode             string
	Connected        bool
	ReplicationError string
	Assistant        string

	Conversations int
	UnreadTotal   int
	UnreadThreads int
	SpamMessages  int
	Recent        []inbox.Conversation

	Latency time.Duration
}

type healthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Mode        string `json:"mode"`
	Replication *struct {
		Connected bool   `json:"connected"`
		LastError string `json:"lastError"`
	} `json:"replication"`
	Services map[string]string `json:"services"`
}

type conversationsResponse struct {
	Conversations []inbox.Conversation `json:"conversations"`
	UnreadTotal   int                  `json:"unreadTotal"`
	Mode          string               `json:"mode"`
}

// NewClient creates a client for the server at baseURL. password is sent
// as the owner passphrase.
func NewClient(baseURL, password string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		password: password,
		client: &http.Client{
			Timeout: 2 * time.Second,
		},
		now: time.Now,
	}
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Fetch reads health and the conversation list.
func (c *Client) Fetch(ctx context.Context) (Snapshot, error) {
	start := c.now()

	var health healthResponse
	if err := c.get(ctx, "/health", &health); err != nil {
		return Snapshot{}, err
	}
	var convs conversationsResponse
	if err := c.get(ctx, "/api/v1/conversations", &convs); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Status:        health.Status,
		Version:       health.Version,
		Mode:          convs.Mode,
		Assistant:     health.Services["assistant"],
		Conversations: len(convs.Conversations),
		UnreadTotal:   convs.UnreadTotal,
		Latency:       c.now().Sub(start),
	}
	if health.Replication != nil {
		snap.Connected = health.Replication.Connected
		snap.ReplicationError = health.Replication.LastError
	}
	for _, conv := range convs.Conversations {
		if conv.UnreadCount > 0 {
			snap.UnreadThreads++
		}
		for _, m := range conv.Messages {
			if m.HasFlag(inbox.FlagSpam) {
				snap.SpamMessages++
			}
		}
	}
	n := min(len(convs.Conversations), recentLimit)
	snap.Recent = convs.Conversations[:n]
	return snap, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.password != "" {
		req.Header.Set(passwordHeader, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status code %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

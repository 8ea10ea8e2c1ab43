// Package main implements folioctl, the operator CLI for a folio server.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const (
	passwordHeader = "X-Folio-Password"
	visitorHeader  = "X-Folio-Visitor"
)

var (
	// serverURL is the base URL for the folio HTTP server
	serverURL string
	// password is the owner passphrase sent on owner-only routes
	password string
	// visitorToken identifies the caller as a visitor
	visitorToken string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "folioctl",
	Short: "CLI for folio server operations",
	Long: `folioctl is a command-line interface for a folio server.
It reads the inbox, sends messages, manages replication and asks the
profile assistant.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("FOLIO_SERVER", "http://localhost:8080"), "folio server URL")
	rootCmd.PersistentFlags().StringVar(&password, "password", os.Getenv("FOLIO_PASSWORD"), "owner password")
	rootCmd.PersistentFlags().StringVar(&visitorToken, "visitor", "", "visitor token to act as")
	rootCmd.AddCommand(healthCmd)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check folio server health",
	Long: `Check the health status of the folio HTTP server.

Examples:
  # Check health
  folioctl health

  # Check health on a different server
  folioctl health --server http://localhost:9090`,
	RunE: runHealth,
}

// HealthResponse matches internal/http/types.go HealthResponse
type HealthResponse struct {
	Status      string             `json:"status"`
	Version     string             `json:"version"`
	Mode        string             `json:"mode"`
	Replication *ReplicationStatus `json:"replication"`
	Services    map[string]string  `json:"services"`
}

func runHealth(cmd *cobra.Command, args []string) error {
	var health HealthResponse
	if err := newClient().do(cmd.Context(), http.MethodGet, "/health", nil, &health); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Server Status: %s\n", health.Status)
	fmt.Fprintf(out, "Server URL: %s\n", serverURL)
	fmt.Fprintf(out, "Inbox Mode: %s\n", health.Mode)
	if health.Version != "" {
		fmt.Fprintf(out, "Version: %s\n", health.Version)
	}
	for name, state := range health.Services {
		fmt.Fprintf(out, "  %s: %s\n", name, state)
	}
	return nil
}

// client wraps the folio HTTP API.
type client struct {
	base     string
	password string
	visitor  string
	http     *http.Client
}

func newClient() *client {
	return &client{
		base:     strings.TrimRight(serverURL, "/"),
		password: password,
		visitor:  visitorToken,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// do sends body (JSON-encoded unless it is an io.Reader) and decodes the
// response into out when out is non-nil.
func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var reader io.Reader
	contentType := "application/json"
	switch b := body.(type) {
	case nil:
	case io.Reader:
		reader = b
		contentType = "text/plain"
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	url := c.base + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if c.password != "" {
		req.Header.Set(passwordHeader, c.password)
	}
	if c.visitor != "" {
		req.Header.Set(visitorHeader, c.visitor)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// statusError renders a non-2xx response, preferring echo's message field.
func statusError(resp *http.Response) error {
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if readErr != nil {
		return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
	}
	var msg struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &msg) == nil && msg.Message != "" {
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, msg.Message)
	}
	return fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

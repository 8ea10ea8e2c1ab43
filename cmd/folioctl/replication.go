package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(replicationCmd)
	replicationCmd.AddCommand(replicationSetCmd)
	replicationCmd.AddCommand(replicationStatusCmd)
	replicationCmd.AddCommand(replicationDisableCmd)
}

// ReplicationStatus matches replication.Status
type ReplicationStatus struct {
	Mode      string `json:"mode"`
	Connected bool   `json:"connected"`
	URL       string `json:"url,omitempty"`
	Bucket    string `json:"bucket,omitempty"`
	LastError string `json:"lastError,omitempty"`
}

var replicationCmd = &cobra.Command{
	Use:   "replication",
	Short: "Manage inbox replication",
	Long: `Manage the shared NATS key/value bucket that replicates the inbox.

Settings are pasted as a JavaScript-style object literal, for example:

  {
    url: "nats://demo.nats.io:4222",
    bucket: "folio-inbox", // letters, digits, - and _
  }`,
}

var replicationSetCmd = &cobra.Command{
	Use:   "set <file>",
	Short: "Apply replication settings from a file (- for stdin)",
	Long: `Apply replication settings read from a file or stdin. An empty file
switches the inbox back to local storage.

Examples:
  folioctl replication set settings.js --password secret
  pbpaste | folioctl replication set - --password secret`,
	Args: cobra.ExactArgs(1),
	RunE: runReplicationSet,
}

func runReplicationSet(cmd *cobra.Command, args []string) error {
	var raw []byte
	var err error
	if args[0] == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		raw, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", args[0], err)
		}
	}

	var st ReplicationStatus
	if err := newClient().do(cmd.Context(), http.MethodPut, "/api/v1/admin/replication", bytes.NewReader(raw), &st); err != nil {
		return err
	}
	printReplicationStatus(cmd, st)
	return nil
}

var replicationStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the replication status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var st ReplicationStatus
		if err := newClient().do(cmd.Context(), http.MethodGet, "/api/v1/admin/replication", nil, &st); err != nil {
			return err
		}
		printReplicationStatus(cmd, st)
		return nil
	},
}

var replicationDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Switch the inbox back to local storage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var st ReplicationStatus
		if err := newClient().do(cmd.Context(), http.MethodDelete, "/api/v1/admin/replication", nil, &st); err != nil {
			return err
		}
		printReplicationStatus(cmd, st)
		return nil
	},
}

func printReplicationStatus(cmd *cobra.Command, st ReplicationStatus) {
	fmt.Fprintf(cmd.OutOrStdout(), "Mode: %s\n", st.Mode)
	fmt.Fprintf(cmd.OutOrStdout(), "Connected: %t\n", st.Connected)
	if st.URL != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "URL: %s\n", st.URL)
	}
	if st.Bucket != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Bucket: %s\n", st.Bucket)
	}
	if st.LastError != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Last error: %s\n", st.LastError)
	}
}

package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/folio/internal/monitor"
)

var monitorInterval time.Duration

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 5*time.Second, "Refresh interval")
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Open a live inbox dashboard",
	Long: `Open a terminal dashboard showing unread counts, replication state and
the most recent conversations. Press r to refresh and q to quit.

Examples:
  folioctl monitor --password secret --interval 10s`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if monitorInterval < time.Second {
			return fmt.Errorf("interval must be at least 1s")
		}
		model := monitor.NewModel(monitor.NewClient(serverURL, password), monitorInterval)
		if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run(); err != nil {
			return fmt.Errorf("dashboard failed: %w", err)
		}
		return nil
	},
}

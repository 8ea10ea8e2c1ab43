package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

var occupationDescription string

func init() {
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(occupationCmd)
	occupationCmd.Flags().StringVar(&occupationDescription, "description", "", "Role description")
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the profile assistant a question",
	Long: `Ask the assistant a question about the profile owner.

Examples:
  folioctl ask "Which languages are listed in the skills?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := struct {
			Question string `json:"question"`
		}{Question: strings.Join(args, " ")}
		var resp struct {
			Answer string `json:"answer"`
		}
		if err := newClient().do(cmd.Context(), http.MethodPost, "/api/v1/assistant/ask", req, &resp); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Answer)
		return nil
	},
}

// OccupationResult matches assistant.OccupationResult
type OccupationResult struct {
	Code       string   `json:"code"`
	Title      string   `json:"title"`
	Confidence float64  `json:"confidence"`
	Reasoning  []string `json:"reasoning"`
}

var occupationCmd = &cobra.Command{
	Use:   "occupation <title>",
	Short: "Classify a job title into a standard occupation code",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		}{Title: strings.Join(args, " "), Description: occupationDescription}
		var res OccupationResult
		if err := newClient().do(cmd.Context(), http.MethodPost, "/api/v1/assistant/occupation", req, &res); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  (%.0f%%)\n", res.Code, res.Title, res.Confidence)
		for _, r := range res.Reasoning {
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", r)
		}
		return nil
	},
}

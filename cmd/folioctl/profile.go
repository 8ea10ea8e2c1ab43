package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileGetCmd)
	profileCmd.AddCommand(profileAddSkillCmd)
	profileCmd.AddCommand(profileRemoveSkillCmd)
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Read and edit the public profile",
}

var profileGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the profile as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var p json.RawMessage
		if err := newClient().do(cmd.Context(), http.MethodGet, "/api/v1/profile", nil, &p); err != nil {
			return err
		}
		return printIndented(cmd, p)
	},
}

var profileAddSkillCmd = &cobra.Command{
	Use:   "add-skill <skill>",
	Short: "Add a skill (owner only)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := struct {
			Skill string `json:"skill"`
		}{Skill: strings.Join(args, " ")}
		if err := newClient().do(cmd.Context(), http.MethodPost, "/api/v1/profile/skills", req, nil); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added skill %q\n", req.Skill)
		return nil
	},
}

var profileRemoveSkillCmd = &cobra.Command{
	Use:   "remove-skill <skill>",
	Short: "Remove a skill (owner only)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		skill := strings.Join(args, " ")
		path := "/api/v1/profile/skills/" + url.PathEscape(skill)
		if err := newClient().do(cmd.Context(), http.MethodDelete, path, nil, nil); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed skill %q\n", skill)
		return nil
	},
}

func printIndented(cmd *cobra.Command, raw json.RawMessage) error {
	out, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format response: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

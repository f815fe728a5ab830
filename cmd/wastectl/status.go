// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/latiju/wastectl/internal/clierr"
	"github.com/latiju/wastectl/pkg/wasteapi"
)

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().Bool("json", false, "Output as JSON")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend connection status",
	Long: `Show whether wastectl can reach the backend and act on it.

Displays:
  - Backend URL and connection state (offline/online/ready)
  - Whether an anti-forgery token is available for writes
  - Number of stored manifests by type

Examples:
  wastectl status
  wastectl status --json
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd)
	},
}

// StatusInfo holds status information for display
type StatusInfo struct {
	Mode      string         `json:"mode"` // "offline", "online", "ready"
	BaseURL   string         `json:"base_url"`
	Config    string         `json:"config,omitempty"`
	Session   bool           `json:"session"`
	CSRFToken bool           `json:"csrf_token"`
	Counts    map[string]int `json:"counts,omitempty"`
	Error     string         `json:"error,omitempty"`
}

func runStatus(cmd *cobra.Command) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	status := StatusInfo{
		Mode:    "offline",
		BaseURL: cfg.BaseURL,
		Config:  cfg.Path,
		Session: cfg.SessionID != "",
	}

	client, err := newClient(nil)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	keys, err := client.AllManifestIDs(ctx, wasteapi.Filters{})
	if err != nil {
		status.Error = clierr.Pretty(err)
		var se *wasteapi.StatusError
		if errors.As(err, &se) || clierr.IsApplication(err) {
			status.Mode = "online"
		}
	} else {
		status.Mode = "online"
		status.Counts = map[string]int{}
		for _, k := range keys {
			status.Counts[string(k.Type)]++
		}
		if _, err := client.CSRFToken(ctx); err == nil {
			status.CSRFToken = true
			status.Mode = "ready"
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	printStatus(cmd.OutOrStdout(), status)
	return nil
}

func printStatus(w io.Writer, s StatusInfo) {
	title := cases.Title(language.English).String(s.Mode)
	switch s.Mode {
	case "ready":
		fmt.Fprintf(w, "Backend:    \033[32m●\033[0m %s (%s)\n", title, s.BaseURL)
	case "online":
		fmt.Fprintf(w, "Backend:    \033[33m○\033[0m %s (%s)\n", title, s.BaseURL)
		if !s.CSRFToken {
			fmt.Fprintln(w, "            Writes need a token: sign in through the web app or pass --csrf-token")
		}
	default:
		fmt.Fprintf(w, "Backend:    \033[31m○\033[0m %s (%s)\n", title, s.BaseURL)
	}

	if s.Config != "" {
		fmt.Fprintf(w, "Config:     %s\n", s.Config)
	}
	fmt.Fprintf(w, "Session:    %s\n", yesNo(s.Session))
	fmt.Fprintf(w, "CSRF token: %s\n", yesNo(s.CSRFToken))

	if s.Counts != nil {
		fmt.Fprintf(w, "Manifests:  %d disposal, %d reuse\n", s.Counts[string(wasteapi.Disposal)], s.Counts[string(wasteapi.Reuse)])
	}
	if s.Error != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, s.Error)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/latiju/wastectl/pkg/wasteapi"
)

var (
	importType      string
	importAllowXLSX bool
	importNoLog     bool
)

var importCmd = &cobra.Command{
	Use:   "import [FILE]",
	Short: "Import a manifest CSV with the interactive wizard",
	Long: `Import a manifest CSV file with the interactive wizard.

The wizard checks the file locally (extension, size and content) before
anything is sent. When rows collide with stored manifests on
聯單編號 + 廢棄物ID, each conflict is shown side by side and you choose:

  s  skip      keep the stored manifest
  r  replace   overwrite it with the uploaded row
  c  cancel    discard the whole import (asks for confirmation)
  a            apply the current choice to every conflict

A run log is written to .wastectl/logs/import-<timestamp>.log.

Examples:
  # Pick the file inside the wizard
  wastectl import

  # Start with a file, as reuse manifests
  wastectl import manifests.csv --type reuse

  # Accept spreadsheets (first sheet is converted to CSV)
  wastectl import manifests.xlsx --xlsx
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVar(&importType, "type", string(wasteapi.Disposal), "Manifest type: disposal or reuse")
	importCmd.Flags().BoolVar(&importAllowXLSX, "xlsx", false, "Also accept .xlsx files")
	importCmd.Flags().BoolVar(&importNoLog, "no-log", false, "Don't write a run log file")
	importCmd.RegisterFlagCompletionFunc("type", completeTypes)
}

func runImport(cmd *cobra.Command, args []string) error {
	t, err := wasteapi.ParseManifestType(importType)
	if err != nil {
		return err
	}
	if importAllowXLSX && !cfg.Allows(".xlsx") {
		cfg.Import.AllowedExtensions = append(cfg.Import.AllowedExtensions, ".xlsx")
	}

	var runlog *RunLogger
	if !importNoLog {
		runlog, err = NewRunLogger(cfg.LogDir, "import", cfg.LogrusLevel())
		if err != nil {
			log.WithError(err).Warn("run log disabled")
		}
	}

	client, err := newClient(runlog.Logger())
	if err != nil {
		runlog.Close()
		return err
	}

	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	m := NewImportWizardModel(client, wizardOptionsFromConfig(cfg), runlog, path)
	if err := m.wiz.SetImportType(t); err != nil {
		runlog.Close()
		return fmt.Errorf("set import type: %w", err)
	}

	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	logPath := runlog.Close()
	if err != nil {
		return fmt.Errorf("run import wizard: %w", err)
	}

	out := cmd.OutOrStdout()
	if fm, ok := final.(ImportWizardModel); ok {
		if r := fm.LastResult(); r.Total > 0 || r.Message != "" {
			fmt.Fprintln(out, successText(r))
		}
	}
	if logPath != "" {
		fmt.Fprintf(out, "Log: %s\n", logPath)
	}
	return nil
}

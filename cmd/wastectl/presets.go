// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/latiju/wastectl/pkg/presets"
	"github.com/latiju/wastectl/pkg/wasteapi"
)

var (
	presetsJSON    bool
	presetsFile    string
	presetsFilters wasteapi.Filters
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List and manage saved filter presets",
	Long: `List and manage saved filter presets.

Presets are named sets of manifest filters. They come in two types:
- Built-in: shipped with wastectl
- User: your own, saved in ~/.wastectl/presets.yaml

A user preset with the same name as a built-in one shadows it.

Use presets with --preset; flags given alongside override the preset:
  wastectl manifests --preset unconfirmed
  wastectl export --preset reuse --from 2024-01-01

Examples:
  # List all presets
  wastectl presets

  # Save a new preset
  wastectl presets save ntuh-reuse "NTUH reuse manifests" --type reuse --company 台大

  # Delete a user preset
  wastectl presets delete ntuh-reuse
`,
	RunE: runPresetsList,
}

var presetsSaveCmd = &cobra.Command{
	Use:   "save NAME [DESCRIPTION]",
	Short: "Save a user preset from filter flags",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runPresetsSave,
}

var presetsDeleteCmd = &cobra.Command{
	Use:               "delete NAME",
	Short:             "Delete a user preset",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completePresets,
	RunE:              runPresetsDelete,
}

func init() {
	rootCmd.AddCommand(presetsCmd)
	presetsCmd.AddCommand(presetsSaveCmd)
	presetsCmd.AddCommand(presetsDeleteCmd)

	presetsCmd.PersistentFlags().StringVar(&presetsFile, "file", "", "Preset file (default ~/.wastectl/presets.yaml)")
	presetsCmd.Flags().BoolVar(&presetsJSON, "json", false, "Output in JSON format")

	fl := presetsSaveCmd.Flags()
	fl.StringVar(&presetsFilters.ManifestType, "type", "", "Manifest type: disposal or reuse")
	fl.StringVar(&presetsFilters.ManifestID, "manifest", "", "聯單編號 contains")
	fl.StringVar(&presetsFilters.CompanyName, "company", "", "事業機構名稱 contains")
	fl.StringVar(&presetsFilters.WasteCode, "waste-code", "", "廢棄物代碼 contains")
	fl.StringVar(&presetsFilters.WasteName, "waste-name", "", "廢棄物名稱 contains")
	fl.StringVar(&presetsFilters.ReportDateFrom, "from", "", "Reported on or after (YYYY-MM-DD)")
	fl.StringVar(&presetsFilters.ReportDateTo, "to", "", "Reported on or before (YYYY-MM-DD)")
	fl.StringVar(&presetsFilters.ReportedWeightBelow, "weight-below", "", "Reported weight below")
	fl.StringVar(&presetsFilters.ReportedWeightAbove, "weight-above", "", "Reported weight above")
	fl.StringVar(&presetsFilters.ConfirmationStatus, "status", "", "confirmed or unconfirmed")
	presetsSaveCmd.RegisterFlagCompletionFunc("type", completeTypes)
	presetsSaveCmd.RegisterFlagCompletionFunc("status", completeStatuses)
}

func openPresets() (*presets.Store, error) {
	path := presetsFile
	if path == "" {
		path = presets.DefaultFile()
	}
	store, err := presets.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load presets: %w", err)
	}
	return store, nil
}

func runPresetsList(cmd *cobra.Command, args []string) error {
	store, err := openPresets()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if presetsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(store.List())
	}

	section := func(title string, list []presets.Preset) {
		if len(list) == 0 {
			return
		}
		fmt.Fprintln(out, title)
		fmt.Fprintln(out, "────────────────")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, p := range list {
			fmt.Fprintf(w, "  %s\t%s\t%s\n", p.Name, p.Description, describeFilters(p.Filters))
		}
		w.Flush()
		fmt.Fprintln(out)
	}
	section("BUILT-IN PRESETS", store.ListBuiltin())
	section("YOUR PRESETS", store.ListUser())

	fmt.Fprintln(out, "USAGE")
	fmt.Fprintln(out, "─────")
	fmt.Fprintln(out, "  wastectl manifests --preset <name>")
	fmt.Fprintln(out, "  wastectl presets save <name> [description] --company ... --from ...")
	return nil
}

func runPresetsSave(cmd *cobra.Command, args []string) error {
	store, err := openPresets()
	if err != nil {
		return err
	}
	p := presets.Preset{Name: args[0], Filters: presetsFilters}
	if len(args) > 1 {
		p.Description = args[1]
	}
	if err := store.Save(p); err != nil {
		return fmt.Errorf("save preset: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Saved preset %q\n", p.Name)
	fmt.Fprintf(out, "  Filters: %s\n", describeFilters(p.Filters))
	fmt.Fprintf(out, "  File:    %s\n", store.Path())
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Use it: wastectl manifests --preset %s\n", p.Name)
	return nil
}

func runPresetsDelete(cmd *cobra.Command, args []string) error {
	store, err := openPresets()
	if err != nil {
		return err
	}
	if err := store.Delete(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted preset %q\n", args[0])
	return nil
}

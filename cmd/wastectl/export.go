// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/latiju/wastectl/pkg/wasteapi"
)

var (
	exportFilters wasteapi.Filters
	exportPreset  string
	exportOutput  string
	exportURLOnly bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export filtered manifests to CSV",
	Long: `Export the manifests matching the filters as CSV.

Examples:
  wastectl export -o manifests.csv
  wastectl export --preset unconfirmed -o - | head
  wastectl export --company 台大 --url
`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	addFilterFlags(exportCmd, &exportFilters, &exportPreset)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "manifests.csv", "Output file, - for stdout")
	exportCmd.Flags().BoolVar(&exportURLOnly, "url", false, "Print the export URL instead of downloading")
}

func runExport(cmd *cobra.Command, args []string) error {
	filters, err := resolveFilters(exportFilters, exportPreset)
	if err != nil {
		return err
	}
	client, err := newClient(nil)
	if err != nil {
		return err
	}
	if exportURLOnly {
		fmt.Fprintln(cmd.OutOrStdout(), client.ExportURL(filters))
		return nil
	}

	var w io.Writer = cmd.OutOrStdout()
	if exportOutput != "-" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("create %s: %w", exportOutput, err)
		}
		defer f.Close()
		w = f
	}

	ctx, cancel := requestContext(cmd)
	defer cancel()
	n, err := client.Export(ctx, filters, w)
	if err != nil {
		return fmt.Errorf("export manifests: %w", err)
	}
	if exportOutput != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Wrote %d bytes to %s\n", n, exportOutput)
	}
	return nil
}

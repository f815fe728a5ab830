// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/latiju/wastectl/pkg/wasteapi"
)

var showRaw bool

var showCmd = &cobra.Command{
	Use:   "show TYPE MANIFEST WASTE",
	Short: "Show one manifest",
	Long: `Show the detail page of one manifest as text.

Examples:
  wastectl show disposal M00001 W1
  wastectl show reuse M00005 W2 --raw
`,
	Args: cobra.ExactArgs(3),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return completeTypes(cmd, args, toComplete)
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "Print the HTML fragment")
}

func runShow(cmd *cobra.Command, args []string) error {
	t, err := wasteapi.ParseManifestType(args[0])
	if err != nil {
		return err
	}
	key := wasteapi.ManifestKey{Type: t, ManifestID: args[1], WasteID: args[2]}

	client, err := newClient(nil)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	html, err := client.ManifestDetail(ctx, key)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	out := cmd.OutOrStdout()
	if showRaw {
		fmt.Fprintln(out, html)
		return nil
	}
	lines, err := wasteapi.DetailText(html)
	if err != nil {
		return fmt.Errorf("parse detail: %w", err)
	}
	for _, l := range lines {
		fmt.Fprintln(out, l)
	}
	return nil
}

// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/latiju/wastectl/internal/clierr"
	"github.com/latiju/wastectl/pkg/wasteapi"
)

var (
	deleteTypes     []string
	deleteManifests []string
	deleteWastes    []string
	deleteYes       bool
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete manifests by key",
	Long: `Delete manifests identified by type, 聯單編號 and 廢棄物ID.

The three flags are paired by position: the first --type goes with the
first --manifest and the first --waste. A single --type applies to every
manifest.

Examples:
  wastectl delete --type disposal --manifest M00001 --waste W1
  wastectl delete --type reuse --manifest M00005 --waste W2 --manifest M00010 --waste W1 --yes
`,
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().StringArrayVar(&deleteTypes, "type", nil, "Manifest type of each key (disposal or reuse)")
	deleteCmd.Flags().StringArrayVar(&deleteManifests, "manifest", nil, "聯單編號 of each key")
	deleteCmd.Flags().StringArrayVar(&deleteWastes, "waste", nil, "廢棄物ID of each key")
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Don't ask for confirmation")
	deleteCmd.RegisterFlagCompletionFunc("type", completeTypes)
}

// pairKeys zips the key flags. A single type applies to every manifest.
func pairKeys(types, manifests, wastes []string) ([]wasteapi.ManifestKey, error) {
	if len(manifests) == 0 {
		return nil, clierr.Invalid("manifest", "at least one --manifest is required")
	}
	if len(wastes) != len(manifests) {
		return nil, clierr.Invalid("waste", "got %d --waste for %d --manifest", len(wastes), len(manifests))
	}
	switch len(types) {
	case 0:
		return nil, clierr.Invalid("type", "--type is required")
	case 1:
		for len(types) < len(manifests) {
			types = append(types, types[0])
		}
	case len(manifests):
	default:
		return nil, clierr.Invalid("type", "got %d --type for %d --manifest", len(types), len(manifests))
	}

	keys := make([]wasteapi.ManifestKey, 0, len(manifests))
	for i := range manifests {
		t, err := wasteapi.ParseManifestType(types[i])
		if err != nil {
			return nil, clierr.Invalid("type", "%v", err)
		}
		keys = append(keys, wasteapi.ManifestKey{
			Type:       t,
			ManifestID: strings.TrimSpace(manifests[i]),
			WasteID:    strings.TrimSpace(wastes[i]),
		})
	}
	return keys, nil
}

// confirm asks a yes/no question on in; anything but y or yes is no.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func runDelete(cmd *cobra.Command, args []string) error {
	keys, err := pairKeys(deleteTypes, deleteManifests, deleteWastes)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !deleteYes {
		for _, k := range keys {
			fmt.Fprintf(out, "  %s\n", k)
		}
		if !confirm(cmd.InOrStdin(), out, fmt.Sprintf("Delete %d manifests?", len(keys))) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	client, err := newClient(nil)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	n, err := client.DeleteManifests(ctx, keys)
	if err != nil {
		return fmt.Errorf("delete manifests: %w", err)
	}
	fmt.Fprintf(out, "✓ Deleted %d manifests\n", n)
	return nil
}

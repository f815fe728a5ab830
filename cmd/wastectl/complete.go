// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/latiju/wastectl/internal/autocomplete"
	"github.com/latiju/wastectl/pkg/wasteapi"
)

var completeLocalRank bool

var completeCmd = &cobra.Command{
	Use:   "complete FIELD QUERY",
	Short: "Print autocomplete suggestions for a filter field",
	Long: `Print the server's autocomplete suggestions for a filter field.

FIELD is one of company_name, waste_name or waste_code.

Examples:
  wastectl complete company_name 台大
  wastectl complete waste_code d-18 --rank
`,
	Args: cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return completeFields(cmd, args, toComplete)
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: runComplete,
}

func init() {
	rootCmd.AddCommand(completeCmd)
	completeCmd.Flags().BoolVar(&completeLocalRank, "rank", false, "Re-rank suggestions by fuzzy match against the query")
}

func runComplete(cmd *cobra.Command, args []string) error {
	field, err := wasteapi.ParseField(args[0])
	if err != nil {
		return err
	}
	query := autocomplete.NormalizeQuery(args[1])

	client, err := newClient(nil)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	results, err := client.Autocomplete(ctx, field, query)
	if err != nil {
		return fmt.Errorf("autocomplete %s: %w", field, err)
	}
	var values []string
	for _, s := range results {
		if v := s.Display(field); v != "" {
			values = append(values, v)
		}
	}
	if completeLocalRank {
		values = autocomplete.Rank(query, values)
	}
	for _, v := range values {
		fmt.Fprintln(cmd.OutOrStdout(), v)
	}
	return nil
}

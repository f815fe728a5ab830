// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/latiju/wastectl/pkg/presets"
	"github.com/latiju/wastectl/pkg/wasteapi"
)

// Value completion cache (avoid repeated API calls during tab-complete)
var (
	cachedValues      = map[string][]string{}
	valueCacheExpiry  = map[string]time.Time{}
	valueCacheMu      sync.Mutex
	valueCacheTTL     = 3 * time.Second
	completionTimeout = 2 * time.Second
)

// completeTypes returns the manifest types
func completeTypes(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	types := []string{string(wasteapi.Disposal), string(wasteapi.Reuse)}
	return filterPrefix(types, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeStatuses returns valid values for --status
func completeStatuses(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return filterPrefix([]string{"confirmed", "unconfirmed"}, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeFields returns the autocomplete fields
func completeFields(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	fields := make([]string, 0, len(wasteapi.Fields))
	for _, f := range wasteapi.Fields {
		fields = append(fields, string(f))
	}
	return filterPrefix(fields, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completePresets returns built-in and saved preset names
func completePresets(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	store, err := presets.Open(presets.DefaultFile())
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	seen := map[string]bool{}
	var names []string
	for _, p := range store.List() {
		if !seen[p.Name] {
			seen[p.Name] = true
			names = append(names, p.Name)
		}
	}
	return filterPrefix(names, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeFieldValues asks the server for suggestions of one field.
func completeFieldValues(field wasteapi.Field) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if toComplete == "" {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		cacheKey := string(field) + "\x00" + strings.ToLower(toComplete)

		valueCacheMu.Lock()
		defer valueCacheMu.Unlock()

		if time.Now().Before(valueCacheExpiry[cacheKey]) {
			return cachedValues[cacheKey], cobra.ShellCompDirectiveNoFileComp
		}

		client, err := wasteapi.NewClient(wasteapi.Options{
			BaseURL:   cfg.BaseURL,
			SessionID: cfg.SessionID,
			CSRFToken: cfg.CSRFToken,
			Timeout:   completionTimeout,
		})
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		// Quick timeout for completion - don't block shell
		ctx, cancel := context.WithTimeout(context.Background(), completionTimeout)
		defer cancel()

		results, err := client.Autocomplete(ctx, field, toComplete)
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		var values []string
		for _, s := range results {
			if v := s.Display(field); v != "" {
				values = append(values, v)
			}
		}

		cachedValues[cacheKey] = values
		valueCacheExpiry[cacheKey] = time.Now().Add(valueCacheTTL)
		return values, cobra.ShellCompDirectiveNoFileComp
	}
}

// filterPrefix filters strings by prefix (case-insensitive)
func filterPrefix(items []string, prefix string) []string {
	if prefix == "" {
		return items
	}
	var filtered []string
	lowerPrefix := strings.ToLower(prefix)
	for _, item := range items {
		if strings.HasPrefix(strings.ToLower(item), lowerPrefix) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"net/http/httptest"
	"testing"

	"github.com/spf13/cobra"

	"github.com/latiju/wastectl/internal/mockserver"
)

func TestCompleteTypes(t *testing.T) {
	cmd := &cobra.Command{}
	types, directive := completeTypes(cmd, nil, "")
	if len(types) != 2 || types[0] != "disposal" || types[1] != "reuse" {
		t.Fatalf("unexpected types: %v", types)
	}
	if directive != cobra.ShellCompDirectiveNoFileComp {
		t.Errorf("expected NoFileComp, got %v", directive)
	}

	types, _ = completeTypes(cmd, nil, "RE")
	if len(types) != 1 || types[0] != "reuse" {
		t.Errorf("expected case-insensitive prefix match, got %v", types)
	}
}

func TestCompleteFields(t *testing.T) {
	fields, _ := completeFields(&cobra.Command{}, nil, "waste_")
	if len(fields) != 2 {
		t.Fatalf("expected waste_name and waste_code, got %v", fields)
	}
}

func TestFilterPrefix(t *testing.T) {
	items := []string{"confirmed", "unconfirmed"}
	if got := filterPrefix(items, ""); len(got) != 2 {
		t.Errorf("empty prefix should return everything, got %v", got)
	}
	if got := filterPrefix(items, "Un"); len(got) != 1 || got[0] != "unconfirmed" {
		t.Errorf("unexpected filter result: %v", got)
	}
	if got := filterPrefix(items, "x"); len(got) != 0 {
		t.Errorf("expected no matches, got %v", got)
	}
}

func TestCompleteFieldValues(t *testing.T) {
	srv := mockserver.New(mockserver.Options{})
	srv.Seed(mockserver.DemoData(8)...)
	ts := httptest.NewServer(srv)

	saved := cfg.BaseURL
	cfg.BaseURL = ts.URL
	t.Cleanup(func() { cfg.BaseURL = saved })

	complete := completeFieldValues("waste_code")
	values, _ := complete(&cobra.Command{}, nil, "D-18")
	if len(values) != 2 {
		t.Fatalf("expected D-1801 and D-1802, got %v", values)
	}

	// Served from cache once the server is gone
	ts.Close()
	cached, _ := complete(&cobra.Command{}, nil, "D-18")
	if len(cached) != 2 {
		t.Errorf("expected cached values, got %v", cached)
	}

	if empty, _ := complete(&cobra.Command{}, nil, ""); empty != nil {
		t.Errorf("empty input should not query, got %v", empty)
	}
}

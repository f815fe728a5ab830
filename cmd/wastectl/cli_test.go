// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latiju/wastectl/internal/clierr"
	"github.com/latiju/wastectl/internal/mockserver"
	"github.com/latiju/wastectl/pkg/wasteapi"
)

// runCLI executes the root command in-process with stdin and returns its
// combined output.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append(args, "--log-level", "silent"))
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func demoBackend(t *testing.T, n int) (*mockserver.Server, string) {
	t.Helper()
	srv := mockserver.New(mockserver.Options{})
	srv.Seed(mockserver.DemoData(n)...)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, ts.URL
}

func TestCLIExportToStdout(t *testing.T) {
	_, url := demoBackend(t, 3)

	out, err := runCLI(t, "", "export", "--base-url", url, "-o", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "聯單編號")
	assert.Contains(t, out, "M00001")
	assert.Contains(t, out, "M00003")
}

func TestCLIShow(t *testing.T) {
	_, url := demoBackend(t, 2)

	out, err := runCLI(t, "", "show", "disposal", "M00001", "W1", "--base-url", url)
	require.NoError(t, err)
	assert.Contains(t, out, "廢棄物代碼 | D-1801")
}

func TestCLIComplete(t *testing.T) {
	_, url := demoBackend(t, 8)

	out, err := runCLI(t, "", "complete", "waste_code", "ｄ-18", "--base-url", url)
	require.NoError(t, err)
	assert.Equal(t, []string{"D-1801", "D-1802"}, strings.Fields(out))
}

func TestCLIDeleteConfirmed(t *testing.T) {
	srv, url := demoBackend(t, 3)

	out, err := runCLI(t, "y\n", "delete", "--base-url", url, "--type", "disposal", "--manifest", "M00001", "--waste", "W1")
	require.NoError(t, err)
	assert.Contains(t, out, "Delete 1 manifests?")
	assert.Contains(t, out, "Deleted 1 manifests")
	assert.Len(t, srv.Visible(), 2)
}

func TestCLIStatusJSON(t *testing.T) {
	_, url := demoBackend(t, 5)

	out, err := runCLI(t, "", "status", "--json", "--base-url", url)
	require.NoError(t, err)

	var status StatusInfo
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, "ready", status.Mode)
	assert.True(t, status.CSRFToken)
	assert.Equal(t, 4, status.Counts["disposal"])
	assert.Equal(t, 1, status.Counts["reuse"])
}

func TestCLIPresets(t *testing.T) {
	file := filepath.Join(t.TempDir(), "presets.yaml")

	out, err := runCLI(t, "", "presets", "save", "ntuh", "NTUH reuse", "--type", "reuse", "--company", "台大", "--file", file)
	require.NoError(t, err)
	assert.Contains(t, out, `Saved preset "ntuh"`)
	assert.Contains(t, out, "manifest_type=reuse company_name=台大")

	out, err = runCLI(t, "", "presets", "--file", file)
	require.NoError(t, err)
	assert.Contains(t, out, "BUILT-IN PRESETS")
	assert.Contains(t, out, "YOUR PRESETS")
	assert.Contains(t, out, "ntuh")

	out, err = runCLI(t, "", "presets", "delete", "ntuh", "--file", file)
	require.NoError(t, err)
	assert.Contains(t, out, `Deleted preset "ntuh"`)
}

func TestPairKeys(t *testing.T) {
	tests := []struct {
		name      string
		types     []string
		manifests []string
		wastes    []string
		want      []wasteapi.ManifestKey
		wantErr   string
	}{
		{
			name:      "single type applies to all",
			types:     []string{"reuse"},
			manifests: []string{"M1", "M2"},
			wastes:    []string{"W1", "W2"},
			want: []wasteapi.ManifestKey{
				{Type: wasteapi.Reuse, ManifestID: "M1", WasteID: "W1"},
				{Type: wasteapi.Reuse, ManifestID: "M2", WasteID: "W2"},
			},
		},
		{
			name:      "paired types",
			types:     []string{"disposal", "reuse"},
			manifests: []string{"M1", "M2"},
			wastes:    []string{"W1", "W2"},
			want: []wasteapi.ManifestKey{
				{Type: wasteapi.Disposal, ManifestID: "M1", WasteID: "W1"},
				{Type: wasteapi.Reuse, ManifestID: "M2", WasteID: "W2"},
			},
		},
		{name: "no manifests", types: []string{"reuse"}, wantErr: "at least one --manifest"},
		{name: "missing waste", types: []string{"reuse"}, manifests: []string{"M1"}, wantErr: "got 0 --waste"},
		{name: "missing type", manifests: []string{"M1"}, wastes: []string{"W1"}, wantErr: "--type is required"},
		{name: "bad type", types: []string{"landfill"}, manifests: []string{"M1"}, wastes: []string{"W1"}, wantErr: "landfill"},
		{
			name:      "type count mismatch",
			types:     []string{"reuse", "reuse"},
			manifests: []string{"M1", "M2", "M3"},
			wastes:    []string{"W1", "W2", "W3"},
			wantErr:   "got 2 --type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pairKeys(tt.types, tt.manifests, tt.wastes)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, clierr.IsValidation(err))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"y", true},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		if got := confirm(strings.NewReader(tt.input), &out, "Proceed?"); got != tt.want {
			t.Errorf("confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "Proceed? [y/N]") {
			t.Errorf("missing prompt, got %q", out.String())
		}
	}
}

func TestResolveFilters(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	f, err := resolveFilters(wasteapi.Filters{ReportDateFrom: "2024-01-01"}, "")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", f.ReportDateFrom)

	_, err = resolveFilters(wasteapi.Filters{ReportDateFrom: "yesterday"}, "")
	require.Error(t, err)
	assert.True(t, clierr.IsValidation(err))
	assert.Contains(t, err.Error(), "report_date_from")

	f, err = resolveFilters(wasteapi.Filters{CompanyName: "台大"}, "reuse")
	require.NoError(t, err)
	assert.Equal(t, "reuse", f.ManifestType)
	assert.Equal(t, "台大", f.CompanyName)

	_, err = resolveFilters(wasteapi.Filters{}, "no-such-preset")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wastectl presets list")
}

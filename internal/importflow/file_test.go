// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package importflow

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/latiju/wastectl/internal/clierr"
)

const sampleCSV = "聯單編號,廢棄物ID,事業機構名稱,申報重量\nM0001,W1,台大醫院,12.5\n"

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestValidateFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content []byte
		limits  Limits
		wantErr string
	}{
		{name: "csv accepted", file: "a.csv", content: []byte(sampleCSV), limits: DefaultLimits()},
		{name: "upper-case extension accepted", file: "A.CSV", content: []byte(sampleCSV), limits: DefaultLimits()},
		{name: "txt rejected", file: "a.txt", content: []byte(sampleCSV), limits: DefaultLimits(), wantErr: "only .csv files"},
		{name: "xlsx rejected by default", file: "a.xlsx", content: []byte("PK"), limits: DefaultLimits(), wantErr: "only .csv files"},
		{name: "oversize rejected", file: "big.csv", content: bytes.Repeat([]byte("a"), 101), limits: Limits{MaxBytes: 100, AllowedExtensions: []string{".csv"}}, wantErr: "limit is 100 B"},
		{name: "exactly at limit accepted", file: "edge.csv", content: bytes.Repeat([]byte("a"), 100), limits: Limits{MaxBytes: 100, AllowedExtensions: []string{".csv"}}},
		{name: "empty rejected", file: "empty.csv", content: nil, limits: DefaultLimits(), wantErr: "empty"},
		{name: "binary rejected", file: "logo.csv", content: []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01"), limits: DefaultLimits(), wantErr: "does not look like text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			f, err := ValidateFile(path, tt.limits)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, clierr.IsValidation(err))
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, f)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.content, f.Content)
			assert.Equal(t, tt.file, f.Name)
			assert.False(t, f.Converted)
		})
	}
}

func TestValidateFileMissingPath(t *testing.T) {
	_, err := ValidateFile("", DefaultLimits())
	assert.True(t, clierr.IsValidation(err))

	_, err = ValidateFile(filepath.Join(t.TempDir(), "gone.csv"), DefaultLimits())
	assert.True(t, clierr.IsValidation(err))
}

func TestValidateFileConvertsXLSX(t *testing.T) {
	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	require.NoError(t, wb.SetSheetRow(sheet, "A1", &[]any{"聯單編號", "廢棄物ID", "備註"}))
	require.NoError(t, wb.SetSheetRow(sheet, "A2", &[]any{"M0001", "W1"}))
	buf, err := wb.WriteToBuffer()
	require.NoError(t, err)

	path := writeFile(t, "manifests.xlsx", buf.Bytes())
	f, err := ValidateFile(path, Limits{MaxBytes: 5 << 20, AllowedExtensions: []string{".csv", ".xlsx"}})
	require.NoError(t, err)
	assert.True(t, f.Converted)
	assert.Equal(t, "manifests.csv", f.Name)
	assert.Equal(t, "聯單編號,廢棄物ID,備註\nM0001,W1,\n", string(f.Content))
}

func TestValidateFileRejectsFakeXLSX(t *testing.T) {
	path := writeFile(t, "fake.xlsx", []byte(sampleCSV))
	_, err := ValidateFile(path, Limits{MaxBytes: 5 << 20, AllowedExtensions: []string{".xlsx"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a spreadsheet")
}

func TestHumanBytes(t *testing.T) {
	assert.Equal(t, "512 B", humanBytes(512))
	assert.Equal(t, "5.0 MiB", humanBytes(5<<20))
	assert.Equal(t, "1.5 KiB", humanBytes(1536))
}

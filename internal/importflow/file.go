// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package importflow

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"

	"github.com/latiju/wastectl/internal/clierr"
)

// Limits bounds what SelectFile accepts.
type Limits struct {
	MaxBytes          int64
	AllowedExtensions []string
}

// DefaultLimits matches the server form: CSV only, 5 MiB.
func DefaultLimits() Limits {
	return Limits{MaxBytes: 5 << 20, AllowedExtensions: []string{".csv"}}
}

func (l Limits) allows(ext string) bool {
	for _, a := range l.AllowedExtensions {
		if strings.EqualFold(a, ext) {
			return true
		}
	}
	return false
}

// File is a validated upload.
type File struct {
	Path string
	// Name is what the server sees; converted spreadsheets get a .csv name.
	Name    string
	Size    int64
	Content []byte
	MIME    string
	// Converted is set when Content was produced from an .xlsx sheet.
	Converted bool
}

// ValidateFile checks path against limits and loads it. It never touches the
// network; every failure is a *clierr.ValidationError.
func ValidateFile(path string, limits Limits) (*File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, clierr.Invalid("file", "no file selected")
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !limits.allows(ext) {
		return nil, clierr.Invalid("file", "only %s files are accepted", strings.Join(limits.AllowedExtensions, ", "))
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, clierr.Invalid("file", "cannot read %s: %v", filepath.Base(path), err)
	}
	if info.IsDir() {
		return nil, clierr.Invalid("file", "%s is a directory", filepath.Base(path))
	}
	if limits.MaxBytes > 0 && info.Size() > limits.MaxBytes {
		return nil, clierr.Invalid("file", "file is %s, the limit is %s", humanBytes(info.Size()), humanBytes(limits.MaxBytes))
	}
	if info.Size() == 0 {
		return nil, clierr.Invalid("file", "file is empty")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, clierr.Invalid("file", "cannot read %s: %v", filepath.Base(path), err)
	}

	f := &File{Path: path, Name: filepath.Base(path), Size: info.Size(), Content: content}
	mt := mimetype.Detect(content)
	f.MIME = mt.String()

	switch ext {
	case ".xlsx":
		if !hasAncestor(mt, "application/zip") {
			return nil, clierr.Invalid("file", "%s is not a spreadsheet (detected %s)", f.Name, f.MIME)
		}
		converted, err := SheetToCSV(content)
		if err != nil {
			return nil, clierr.Invalid("file", "convert %s: %v", f.Name, err)
		}
		if limits.MaxBytes > 0 && int64(len(converted)) > limits.MaxBytes {
			return nil, clierr.Invalid("file", "converted sheet is %s, the limit is %s", humanBytes(int64(len(converted))), humanBytes(limits.MaxBytes))
		}
		f.Content = converted
		f.Size = int64(len(converted))
		f.Name = strings.TrimSuffix(f.Name, filepath.Ext(f.Name)) + ".csv"
		f.Converted = true
	default:
		if !hasAncestor(mt, "text/plain") {
			return nil, clierr.Invalid("file", "%s does not look like text (detected %s)", f.Name, f.MIME)
		}
	}
	return f, nil
}

func hasAncestor(mt *mimetype.MIME, want string) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is(want) {
			return true
		}
	}
	return false
}

// SheetToCSV renders the first sheet of an xlsx workbook as CSV.
func SheetToCSV(content []byte) ([]byte, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", sheets[0])
	}

	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, r := range rows {
		for len(r) < width {
			r = append(r, "")
		}
		if err := w.Write(r); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

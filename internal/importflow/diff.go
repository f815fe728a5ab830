// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package importflow

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/latiju/wastectl/pkg/wasteapi"
)

// Missing is shown for a field absent on one side.
const Missing = "-"

// fieldOrder puts the identifying columns first; anything else follows sorted.
var fieldOrder = []string{
	"聯單編號", "廢棄物ID", "事業機構代碼", "事業機構名稱", "申報日期",
	"廢棄物代碼", "廢棄物名稱", "物質代碼", "物質名稱", "申報重量",
}

// DiffRow compares one field of a conflicting record.
type DiffRow struct {
	Field    string
	Existing string
	New      string
	// Differs is set only when both sides have a value and they disagree.
	Differs bool
}

// Diff lines up the stored and uploaded values of rec.
func Diff(rec wasteapi.ConflictRecord) []DiffRow {
	seen := make(map[string]bool)
	var fields []string
	for _, f := range fieldOrder {
		if _, ok := rec.ExistingData[f]; ok {
			fields = append(fields, f)
			seen[f] = true
			continue
		}
		if _, ok := rec.NewData[f]; ok {
			fields = append(fields, f)
			seen[f] = true
		}
	}
	var rest []string
	for f := range rec.ExistingData {
		if !seen[f] {
			rest = append(rest, f)
			seen[f] = true
		}
	}
	for f := range rec.NewData {
		if !seen[f] {
			rest = append(rest, f)
			seen[f] = true
		}
	}
	sort.Strings(rest)
	fields = append(fields, rest...)

	rows := make([]DiffRow, 0, len(fields))
	for _, f := range fields {
		oldV := strings.TrimSpace(rec.ExistingData[f])
		newV := strings.TrimSpace(rec.NewData[f])
		row := DiffRow{Field: f, Existing: oldV, New: newV}
		if oldV != "" && newV != "" {
			row.Differs = !sameValue(oldV, newV)
		}
		if row.Existing == "" {
			row.Existing = Missing
		}
		if row.New == "" {
			row.New = Missing
		}
		rows = append(rows, row)
	}
	return rows
}

// sameValue treats numerically equal strings as equal, so "12.50" matches
// "12.5".
func sameValue(a, b string) bool {
	if a == b {
		return true
	}
	if da, err := decimal.NewFromString(a); err == nil {
		if db, err := decimal.NewFromString(b); err == nil {
			return da.Equal(db)
		}
	}
	return false
}

// DiffCount is the number of differing fields in rec.
func DiffCount(rec wasteapi.ConflictRecord) int {
	n := 0
	for _, r := range Diff(rec) {
		if r.Differs {
			n++
		}
	}
	return n
}

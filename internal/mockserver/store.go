// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package mockserver

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/latiju/wastectl/pkg/wasteapi"
)

// CSV column names the backend understands.
const (
	ColManifestID    = "聯單編號"
	ColWasteID       = "廢棄物ID"
	ColCompanyID     = "事業機構代碼"
	ColCompanyName   = "事業機構名稱"
	ColReportDate    = "申報日期"
	ColWasteCode     = "廢棄物代碼"
	ColWasteName     = "廢棄物名稱"
	ColSubstanceCode = "物質代碼"
	ColSubstanceName = "物質名稱"
	ColWeight        = "申報重量"
	ColConfirmed     = "聯單確認"
)

// Manifest is one stored manifest.
type Manifest struct {
	Key         wasteapi.ManifestKey
	CompanyID   string
	CompanyName string
	ReportDate  string
	WasteCode   string
	WasteName   string
	Weight      string
	Confirmed   bool
	Visible     bool
	// Row is the CSV row it was imported from.
	Row map[string]string
}

func manifestFromRow(t wasteapi.ManifestType, row map[string]string) *Manifest {
	m := &Manifest{
		Key:         wasteapi.ManifestKey{Type: t, ManifestID: row[ColManifestID], WasteID: row[ColWasteID]},
		CompanyID:   row[ColCompanyID],
		CompanyName: row[ColCompanyName],
		ReportDate:  row[ColReportDate],
		Weight:      row[ColWeight],
		Confirmed:   truthy(row[ColConfirmed]),
		Visible:     true,
		Row:         row,
	}
	if t == wasteapi.Reuse {
		m.WasteCode, m.WasteName = row[ColSubstanceCode], row[ColSubstanceName]
	} else {
		m.WasteCode, m.WasteName = row[ColWasteCode], row[ColWasteName]
	}
	return m
}

func truthy(v string) bool {
	v = strings.ToUpper(strings.TrimSpace(v))
	return v == "Y" || v == "TRUE" || v == "1"
}

// existingData is what the conflict dialog shows for the stored side.
func (m *Manifest) existingData() map[string]string {
	codeCol, nameCol := ColWasteCode, ColWasteName
	if m.Key.Type == wasteapi.Reuse {
		codeCol, nameCol = ColSubstanceCode, ColSubstanceName
	}
	return map[string]string{
		ColManifestID:  m.Key.ManifestID,
		ColCompanyID:   m.CompanyID,
		ColCompanyName: m.CompanyName,
		ColReportDate:  m.ReportDate,
		codeCol:        m.WasteCode,
		nameCol:        m.WasteName,
		ColWeight:      m.Weight,
		ColWasteID:     m.Key.WasteID,
	}
}

// parseRows reads a CSV with a header line into column maps.
func parseRows(data string) ([]map[string]string, error) {
	data = strings.TrimPrefix(data, "\ufeff")
	r := csv.NewReader(strings.NewReader(data))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []map[string]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(rows)+2, err)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = strings.TrimSpace(rec[i])
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func contains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// dateKey turns 2024/01/02 and 2024-01-02 into a comparable string.
func dateKey(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "/", "-")
}

// match applies the manifest list filter form.
func (m *Manifest) match(q map[string]string) bool {
	if !m.Visible {
		return false
	}
	if v := q["manifest_type"]; v != "" && string(m.Key.Type) != v {
		return false
	}
	if v := q["manifest_id"]; v != "" && !contains(m.Key.ManifestID, v) {
		return false
	}
	if v := q["company_name"]; v != "" && !contains(m.CompanyName, v) {
		return false
	}
	if v := q["waste_code"]; v != "" && !contains(m.WasteCode, v) {
		return false
	}
	if v := q["waste_name"]; v != "" && !contains(m.WasteName, v) {
		return false
	}
	if v := q["report_date_from"]; v != "" && dateKey(m.ReportDate) < dateKey(v) {
		return false
	}
	if v := q["report_date_to"]; v != "" && dateKey(m.ReportDate) > dateKey(v) {
		return false
	}
	if v := q["reported_weight_below"]; v != "" && !weightCmp(m.Weight, v, func(c int) bool { return c <= 0 }) {
		return false
	}
	if v := q["reported_weight_above"]; v != "" && !weightCmp(m.Weight, v, func(c int) bool { return c >= 0 }) {
		return false
	}
	switch q["confirmation_status"] {
	case "confirmed":
		return m.Confirmed
	case "unconfirmed":
		return !m.Confirmed
	}
	return true
}

func weightCmp(weight, bound string, ok func(int) bool) bool {
	w, err := decimal.NewFromString(strings.TrimSpace(weight))
	if err != nil {
		return false
	}
	b, err := decimal.NewFromString(strings.TrimSpace(bound))
	if err != nil {
		// An invalid bound is ignored, like an invalid form field.
		return true
	}
	return ok(w.Cmp(b))
}

var exportColumns = []string{
	"聯單類型", ColManifestID, ColWasteID, ColCompanyID, ColCompanyName,
	ColReportDate, "代碼", "名稱", ColWeight, ColConfirmed,
}

func writeExport(w io.Writer, ms []*Manifest) error {
	var buf bytes.Buffer
	buf.WriteString("\ufeff")
	cw := csv.NewWriter(&buf)
	if err := cw.Write(exportColumns); err != nil {
		return err
	}
	for _, m := range ms {
		confirmed := "N"
		if m.Confirmed {
			confirmed = "Y"
		}
		rec := []string{
			string(m.Key.Type), m.Key.ManifestID, m.Key.WasteID, m.CompanyID, m.CompanyName,
			m.ReportDate, m.WasteCode, m.WasteName, m.Weight, confirmed,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

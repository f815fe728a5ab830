// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package mockserver

import (
	"fmt"

	"github.com/latiju/wastectl/pkg/wasteapi"
)

var demoCompanies = []struct{ id, name string }{
	{"A1234567", "台大醫院"},
	{"B2345678", "榮民總醫院"},
	{"C3456789", "長庚紀念醫院"},
	{"D4567890", "馬偕紀念醫院"},
}

var demoWastes = []struct{ code, name string }{
	{"D-1801", "感染性廢棄物"},
	{"D-1802", "尖銳器具"},
	{"C-0301", "廢液"},
	{"R-0201", "廢塑膠"},
}

// DemoData returns a deterministic set of n manifests.
func DemoData(n int) []Manifest {
	out := make([]Manifest, 0, n)
	for i := 0; i < n; i++ {
		c := demoCompanies[i%len(demoCompanies)]
		w := demoWastes[i%len(demoWastes)]
		t := wasteapi.Disposal
		if i%5 == 4 {
			t = wasteapi.Reuse
		}
		out = append(out, Manifest{
			Key: wasteapi.ManifestKey{
				Type:       t,
				ManifestID: fmt.Sprintf("M%05d", i+1),
				WasteID:    fmt.Sprintf("W%d", i%3+1),
			},
			CompanyID:   c.id,
			CompanyName: c.name,
			ReportDate:  fmt.Sprintf("2024-%02d-%02d", i%12+1, i%28+1),
			WasteCode:   w.code,
			WasteName:   w.name,
			Weight:      fmt.Sprintf("%d.%d", 10+i*3%90, i%10),
			Confirmed:   i%2 == 0,
		})
	}
	return out
}

// SampleCSV renders manifests as an upload file for the disposal form.
func SampleCSV(ms []Manifest) string {
	s := ColManifestID + "," + ColWasteID + "," + ColCompanyID + "," + ColCompanyName + "," +
		ColReportDate + "," + ColWasteCode + "," + ColWasteName + "," + ColWeight + "," + ColConfirmed + "\n"
	for _, m := range ms {
		confirmed := "N"
		if m.Confirmed {
			confirmed = "Y"
		}
		s += fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s,%s,%s\n",
			m.Key.ManifestID, m.Key.WasteID, m.CompanyID, m.CompanyName,
			m.ReportDate, m.WasteCode, m.WasteName, m.Weight, confirmed)
	}
	return s
}

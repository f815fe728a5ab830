// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/latiju/wastectl/internal/clierr"
	"github.com/latiju/wastectl/pkg/presets"
	"github.com/latiju/wastectl/pkg/wasteapi"
)

// addFilterFlags registers the manifest list filters on cmd.
func addFilterFlags(cmd *cobra.Command, f *wasteapi.Filters, preset *string) {
	fl := cmd.Flags()
	fl.StringVar(preset, "preset", "", "Start from a saved filter preset (see 'wastectl presets list')")
	fl.StringVar(&f.ManifestType, "type", "", "Manifest type: disposal or reuse")
	fl.StringVar(&f.ManifestID, "manifest", "", "聯單編號 contains")
	fl.StringVar(&f.CompanyName, "company", "", "事業機構名稱 contains")
	fl.StringVar(&f.WasteCode, "waste-code", "", "廢棄物代碼 contains")
	fl.StringVar(&f.WasteName, "waste-name", "", "廢棄物名稱 contains")
	fl.StringVar(&f.ReportDateFrom, "from", "", "Reported on or after (YYYY-MM-DD)")
	fl.StringVar(&f.ReportDateTo, "to", "", "Reported on or before (YYYY-MM-DD)")
	fl.StringVar(&f.ReportedWeightBelow, "weight-below", "", "Reported weight below")
	fl.StringVar(&f.ReportedWeightAbove, "weight-above", "", "Reported weight above")
	fl.StringVar(&f.ConfirmationStatus, "status", "", "confirmed or unconfirmed")

	cmd.RegisterFlagCompletionFunc("preset", completePresets)
	cmd.RegisterFlagCompletionFunc("type", completeTypes)
	cmd.RegisterFlagCompletionFunc("status", completeStatuses)
	cmd.RegisterFlagCompletionFunc("company", completeFieldValues(wasteapi.FieldCompanyName))
	cmd.RegisterFlagCompletionFunc("waste-code", completeFieldValues(wasteapi.FieldWasteCode))
	cmd.RegisterFlagCompletionFunc("waste-name", completeFieldValues(wasteapi.FieldWasteName))
}

// resolveFilters applies flag filters on top of the named preset and
// validates the result.
func resolveFilters(flags wasteapi.Filters, preset string) (wasteapi.Filters, error) {
	f := flags
	if preset != "" {
		store, err := presets.Open(presets.DefaultFile())
		if err != nil {
			return wasteapi.Filters{}, err
		}
		p, err := store.Get(preset)
		if err != nil {
			if errors.Is(err, presets.ErrNotFound) {
				return wasteapi.Filters{}, clierr.WrapWithHint(err, "Run 'wastectl presets list' to see available presets")
			}
			return wasteapi.Filters{}, err
		}
		f = p.Filters.Merge(flags)
	}
	if err := f.Validate(); err != nil {
		var fe *wasteapi.FilterError
		if errors.As(err, &fe) {
			return wasteapi.Filters{}, clierr.Invalid(fe.Field, "must satisfy %s", fe.Rule)
		}
		return wasteapi.Filters{}, err
	}
	return f, nil
}

// describeFilters renders the set filters as key=value pairs.
func describeFilters(f wasteapi.Filters) string {
	vals := f.Values()
	var parts []string
	for _, k := range filterKeyOrder {
		if v := vals.Get(k); v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	return strings.Join(parts, " ")
}

var filterKeyOrder = []string{
	"manifest_type", "manifest_id", "company_name", "waste_code", "waste_name",
	"report_date_from", "report_date_to", "reported_weight_below", "reported_weight_above",
	"confirmation_status",
}

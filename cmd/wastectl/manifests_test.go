// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latiju/wastectl/internal/autocomplete"
	"github.com/latiju/wastectl/internal/mockserver"
	"github.com/latiju/wastectl/pkg/wasteapi"
)

func testManifestsOptions() ManifestsOptions {
	return ManifestsOptions{
		Wizard: testWizardOptions(),
		Autocomplete: autocomplete.Options{
			Debounce: 10 * time.Millisecond,
			Timeout:  5 * time.Second,
		},
	}
}

// loadedBrowser returns a browser over n demo manifests with the first
// list response applied.
func loadedBrowser(t *testing.T, n int, filters wasteapi.Filters) (tea.Model, *mockserver.Server, *wasteapi.Client) {
	t.Helper()
	srv := mockserver.New(mockserver.Options{})
	srv.Seed(mockserver.DemoData(n)...)
	client := testClient(t, srv)

	m := NewManifestsModel(client, testManifestsOptions(), nil, filters)
	next, _ := m.Update(findMsg[manifestsLoadedMsg](t, m.Init()))
	return next, srv, client
}

func browser(m tea.Model) ManifestsModel { return m.(ManifestsModel) }

func TestManifestsLoadAndSelect(t *testing.T) {
	m, _, _ := loadedBrowser(t, 4, wasteapi.Filters{})
	sel := browser(m).Selection()
	require.Equal(t, 4, sel.Len())
	assert.Contains(t, m.View(), "4 manifests, 0 selected")

	m, _ = press(m, " ", "j", " ")
	assert.Equal(t, 2, browser(m).Selection().Count())
	assert.Contains(t, m.View(), "4 manifests, 2 selected")

	m, _ = press(m, "a")
	assert.True(t, browser(m).Selection().AllSelected())
	assert.Equal(t, 4, browser(m).Selection().Count())

	m, _ = press(m, "a")
	assert.Equal(t, 0, browser(m).Selection().Count())
}

func TestManifestsCursorStaysInRange(t *testing.T) {
	m, _, _ := loadedBrowser(t, 2, wasteapi.Filters{})

	m, _ = press(m, "k", "j", "j", "j")
	assert.Equal(t, 1, browser(m).cursor)
	m, _ = press(m, "k", "k")
	assert.Equal(t, 0, browser(m).cursor)
}

func TestManifestsDeleteSelected(t *testing.T) {
	m, srv, _ := loadedBrowser(t, 4, wasteapi.Filters{})

	m, _ = press(m, " ", "j", " ", "d")
	assert.Contains(t, m.View(), "Delete 2 selected manifests? [y/N]")

	m, cmd := press(m, "y")
	m, cmd = m.Update(findMsg[manifestsDeletedMsg](t, cmd))
	assert.Len(t, srv.Visible(), 2)
	assert.Contains(t, m.View(), "Deleted 2 manifests")

	m, _ = m.Update(findMsg[manifestsLoadedMsg](t, cmd))
	assert.Equal(t, 2, browser(m).Selection().Len())
	assert.Equal(t, 0, browser(m).Selection().Count())
}

func TestManifestsDeleteDeclined(t *testing.T) {
	m, srv, _ := loadedBrowser(t, 3, wasteapi.Filters{})

	m, _ = press(m, " ", "d", "n")
	assert.NotContains(t, m.View(), "[y/N]")
	assert.Len(t, srv.Visible(), 3)
	assert.Equal(t, 1, browser(m).Selection().Count())
}

func TestManifestsDeleteNeedsSelection(t *testing.T) {
	m, _, _ := loadedBrowser(t, 3, wasteapi.Filters{})

	m, _ = press(m, "d")
	assert.Contains(t, m.View(), "Select manifests to delete first")
	assert.False(t, browser(m).confirmDelete)
}

func TestManifestsDetail(t *testing.T) {
	m, _, _ := loadedBrowser(t, 2, wasteapi.Filters{})

	m, cmd := press(m, "enter")
	assert.True(t, browser(m).detailOpen)
	m, _ = m.Update(findMsg[detailLoadedMsg](t, cmd))
	view := m.View()
	assert.Contains(t, view, "M00001")
	assert.Contains(t, view, "廢棄物代碼")

	m, _ = press(m, "esc")
	assert.False(t, browser(m).detailOpen)
	assert.Contains(t, m.View(), "2 manifests")
}

func TestManifestsDetailLoadFailed(t *testing.T) {
	m, _, client := loadedBrowser(t, 2, wasteapi.Filters{})

	// Remove the row under the cursor behind the browser's back
	first := browser(m).Selection().Rows()[0]
	_, err := client.DeleteManifests(context.Background(), []wasteapi.ManifestKey{first})
	require.NoError(t, err)

	m, cmd := press(m, "enter")
	m, _ = m.Update(findMsg[detailLoadedMsg](t, cmd))
	assert.Contains(t, m.View(), "Load failed")
}

func TestManifestsStaleLoadIgnored(t *testing.T) {
	m, _, _ := loadedBrowser(t, 3, wasteapi.Filters{})

	m, _ = m.Update(manifestsLoadedMsg{gen: 0, keys: nil})
	assert.Equal(t, 3, browser(m).Selection().Len())
}

func TestManifestsFilterByCompany(t *testing.T) {
	m, _, _ := loadedBrowser(t, 4, wasteapi.Filters{})

	m, _ = press(m, "/")
	assert.True(t, browser(m).filtering)
	m, _ = press(m, "台大")
	m, cmd := press(m, "enter")
	assert.False(t, browser(m).filtering)
	assert.Equal(t, "台大", browser(m).filters.CompanyName)

	m, _ = m.Update(findMsg[manifestsLoadedMsg](t, cmd))
	assert.Equal(t, 1, browser(m).Selection().Len())
	assert.Contains(t, m.View(), "Filters: company_name=台大")
}

func TestManifestsFilterTabCyclesFields(t *testing.T) {
	m, _, _ := loadedBrowser(t, 1, wasteapi.Filters{})

	m, _ = press(m, "/", "tab")
	assert.Equal(t, 1, browser(m).focus)
	m, _ = press(m, "tab", "tab")
	assert.Equal(t, 0, browser(m).focus)

	m, _ = press(m, "esc")
	assert.False(t, browser(m).filtering)
}

func TestManifestsClearFilters(t *testing.T) {
	m, _, _ := loadedBrowser(t, 4, wasteapi.Filters{CompanyName: "台大"})
	require.Equal(t, 1, browser(m).Selection().Len())

	m, cmd := press(m, "x")
	assert.True(t, browser(m).filters.IsEmpty())
	m, _ = m.Update(findMsg[manifestsLoadedMsg](t, cmd))
	assert.Equal(t, 4, browser(m).Selection().Len())
}

func TestManifestsChangedMsgReloads(t *testing.T) {
	m, _, _ := loadedBrowser(t, 4, wasteapi.Filters{})

	m, cmd := m.Update(autocomplete.ChangedMsg{Name: string(wasteapi.FieldWasteCode), Value: "D-1801"})
	assert.Equal(t, "D-1801", browser(m).filters.WasteCode)
	m, _ = m.Update(findMsg[manifestsLoadedMsg](t, cmd))
	assert.Equal(t, 1, browser(m).Selection().Len())
}

func TestManifestsEmbeddedImport(t *testing.T) {
	m, _, _ := loadedBrowser(t, 2, wasteapi.Filters{})

	m, _ = press(m, "I")
	require.NotNil(t, browser(m).wizard)
	assert.Contains(t, m.View(), "Import manifests")

	m, cmd := m.Update(wizardClosedMsg{imported: true})
	assert.Nil(t, browser(m).wizard)
	m, _ = m.Update(findMsg[manifestsLoadedMsg](t, cmd))
	assert.Equal(t, 2, browser(m).Selection().Len())
}

func TestManifestsImportThenReload(t *testing.T) {
	srv := mockserver.New(mockserver.Options{})
	srv.Seed(mockserver.DemoData(2)...)
	client := testClient(t, srv)
	path := writeCSV(t, mockserver.DemoData(5)[2:])

	m := NewManifestsModel(client, testManifestsOptions(), nil, wasteapi.Filters{})
	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(100, 40))

	teatest.WaitFor(t, tm.Output(), func(b []byte) bool {
		return bytes.Contains(b, []byte("2 manifests"))
	}, teatest.WithDuration(5*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'I'}})
	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(path)})
	tm.Send(tea.KeyMsg{Type: tea.KeyEnter})

	teatest.WaitFor(t, tm.Output(), func(b []byte) bool {
		return bytes.Contains(b, []byte("5 manifests"))
	}, teatest.WithDuration(5*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	fm := tm.FinalModel(t, teatest.WithFinalTimeout(5*time.Second)).(ManifestsModel)
	assert.Equal(t, 5, fm.Selection().Len())
	assert.Nil(t, fm.wizard)
}

// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package autocomplete

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	queries []string
	results map[string][]string
}

func (r *recorder) lookup(_ context.Context, q string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, q)
	if q == "boom" {
		return nil, errors.New("autocomplete failed")
	}
	return r.results[q], nil
}

func testModel(r *recorder, opts Options) Model {
	if opts.Debounce == 0 {
		opts.Debounce = time.Millisecond
	}
	m := New("company_name", "Company", r.lookup, opts)
	m.Input.Cursor.SetMode(cursor.CursorStatic)
	m.Focus()
	return m
}

func typeRune(t *testing.T, m Model, r rune) (Model, tea.Cmd) {
	t.Helper()
	return m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
}

func TestDebounceIssuesOneLookupForFinalText(t *testing.T) {
	rec := &recorder{results: map[string][]string{"台大醫": {"台大醫院"}}}
	m := testModel(rec, Options{})

	var ticks []tea.Cmd
	for _, r := range "台大醫" {
		var cmd tea.Cmd
		m, cmd = typeRune(t, m, r)
		require.NotNil(t, cmd)
		ticks = append(ticks, cmd)
	}

	var lookups []tea.Cmd
	for _, tick := range ticks {
		var cmd tea.Cmd
		m, cmd = m.Update(tick())
		if cmd != nil {
			lookups = append(lookups, cmd)
		}
	}
	require.Len(t, lookups, 1, "only the last debounce tick may issue a lookup")

	m, _ = m.Update(lookups[0]())
	assert.Equal(t, []string{"台大醫"}, rec.queries)
	assert.True(t, m.Open())
	assert.Equal(t, []string{"台大醫院"}, m.Items())
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	rec := &recorder{results: map[string][]string{
		"a":  {"a-old"},
		"ab": {"ab-new"},
	}}
	m := testModel(rec, Options{})

	m, tick := typeRune(t, m, 'a')
	m, older := m.Update(tick())
	require.NotNil(t, older)

	m, tick = typeRune(t, m, 'b')
	m, newer := m.Update(tick())
	require.NotNil(t, newer)

	// Newer lands first, then the slow older one.
	m, _ = m.Update(newer())
	m, _ = m.Update(older())
	assert.Equal(t, []string{"ab-new"}, m.Items())

	// And when the older one lands while the newer is still in flight.
	m, tick = typeRune(t, m, 'c')
	m, inFlight := m.Update(tick())
	require.NotNil(t, inFlight)
	m, _ = m.Update(resultMsg{id: m.id, gen: m.gen - 1, query: "ab", items: []string{"late"}})
	assert.NotContains(t, m.Items(), "late")
}

func TestResponseForEditedTextIsDiscarded(t *testing.T) {
	rec := &recorder{results: map[string][]string{"a": {"a1"}}}
	m := testModel(rec, Options{})

	m, tick := typeRune(t, m, 'a')
	m, lookup := m.Update(tick())
	m, _ = typeRune(t, m, 'x')

	m, _ = m.Update(lookup())
	assert.False(t, m.Open())
	assert.Empty(t, m.Items())
}

func TestEmptyQueryPolicy(t *testing.T) {
	t.Run("suppress", func(t *testing.T) {
		rec := &recorder{}
		m := testModel(rec, Options{})
		m, _ = typeRune(t, m, 'a')
		m, cmd := m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
		require.NotNil(t, cmd)
		m, cmd = m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
		m, cmd = m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
		assert.Nil(t, cmd, "empty input schedules nothing")
		assert.False(t, m.Open())
		assert.Empty(t, rec.queries)
	})

	t.Run("query", func(t *testing.T) {
		rec := &recorder{}
		m := testModel(rec, Options{QueryEmpty: true})
		m, _ = typeRune(t, m, 'a')
		m, tick := m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
		require.NotNil(t, tick)
		m, lookup := m.Update(tick())
		require.NotNil(t, lookup)
		m, _ = m.Update(lookup())
		assert.Equal(t, []string{""}, rec.queries)
		assert.True(t, m.Open())
		assert.Contains(t, m.View(), "no results")
	})
}

func TestLookupErrorClosesList(t *testing.T) {
	rec := &recorder{}
	m := testModel(rec, Options{})
	m.SetValue("boo")
	m, tick := typeRune(t, m, 'm')
	m, lookup := m.Update(tick())
	m, _ = m.Update(lookup())
	assert.Error(t, m.Err())
	assert.False(t, m.Open())
}

func TestSelectWritesValueAndEmitsChanged(t *testing.T) {
	rec := &recorder{results: map[string][]string{"D": {"D-1801", "D-1501"}}}
	m := testModel(rec, Options{})
	m, tick := typeRune(t, m, 'D')
	m, lookup := m.Update(tick())
	m, _ = m.Update(lookup())
	require.True(t, m.Open())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, m.Cursor())
	selected := m.Items()[1]

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, ChangedMsg{Name: "company_name", Value: selected}, cmd())
	assert.Equal(t, selected, m.Value())
	assert.False(t, m.Open())
}

func TestBlurClosesList(t *testing.T) {
	rec := &recorder{results: map[string][]string{"x": {"x1"}}}
	m := testModel(rec, Options{})
	m, tick := typeRune(t, m, 'x')
	m, lookup := m.Update(tick())
	m, _ = m.Update(lookup())
	require.True(t, m.Open())

	m.Blur()
	assert.False(t, m.Open())
	assert.False(t, m.Focused())

	m, cmd := typeRune(t, m, 'y')
	assert.Nil(t, cmd, "blurred field ignores keys")
	assert.Equal(t, "x", m.Value())
}

func TestNormalizeQuery(t *testing.T) {
	assert.Equal(t, "ABC123", NormalizeQuery("　ＡＢＣ１２３ "))
	assert.Equal(t, "台大", NormalizeQuery(" 台大 "))
}

func TestRank(t *testing.T) {
	got := Rank("D15", []string{"D-1801", "D-1501", "XD-15"})
	assert.Equal(t, []string{"XD-15", "D-1501", "D-1801"}, got)
	assert.Equal(t, []string{"b", "a"}, Rank("", []string{"b", "a"}))
}

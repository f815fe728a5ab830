// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package autocomplete binds a text input to a suggestion endpoint.
//
// Keystrokes are debounced; only the last lookup issued may update the list,
// so a slow response for an old prefix never overwrites a newer one. Any
// keystroke after a lookup is issued also discards that lookup's result,
// even when no newer lookup has been sent yet; the list waits for the
// lookup of the current text.
package autocomplete

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/width"
)

// Lookup fetches display strings for query.
type Lookup func(ctx context.Context, query string) ([]string, error)

// ChangedMsg is emitted when a suggestion is chosen.
type ChangedMsg struct {
	Name  string
	Value string
}

type debounceMsg struct {
	id  int
	gen int
}

type resultMsg struct {
	id    int
	gen   int
	query string
	items []string
	err   error
}

// Options tunes a Model.
type Options struct {
	Debounce time.Duration
	// QueryEmpty issues lookups for an empty input instead of closing the list.
	QueryEmpty bool
	Timeout    time.Duration
	MaxVisible int
}

var lastID int64

var (
	itemStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// Model is one autocomplete field.
type Model struct {
	Name  string
	Label string
	Input textinput.Model

	lookup Lookup
	opts   Options
	id     int

	gen     int // bumped on every edit
	issued  int // gen of the newest lookup sent
	applied int // gen of the newest result shown

	query   string
	items   []string
	cursor  int
	open    bool
	loading bool
	err     error
}

// New creates a field named name that queries lookup.
func New(name, label string, lookup Lookup, opts Options) Model {
	if opts.Debounce < 0 {
		opts.Debounce = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxVisible <= 0 {
		opts.MaxVisible = 8
	}
	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = label
	ti.CharLimit = 100
	ti.Width = 30
	return Model{
		Name:   name,
		Label:  label,
		Input:  ti,
		lookup: lookup,
		opts:   opts,
		id:     int(atomic.AddInt64(&lastID, 1)),
	}
}

// NormalizeQuery trims q and folds full-width characters to their
// half-width forms.
func NormalizeQuery(q string) string {
	return width.Fold.String(strings.TrimSpace(q))
}

// Value is the current input text.
func (m Model) Value() string { return m.Input.Value() }

// SetValue replaces the input text without a lookup.
func (m *Model) SetValue(v string) {
	m.Input.SetValue(v)
	m.gen++
	m.issued = m.gen
	m.closeList()
}

// Focus focuses the input.
func (m *Model) Focus() tea.Cmd { return m.Input.Focus() }

// Blur unfocuses the input and closes the list.
func (m *Model) Blur() {
	m.Input.Blur()
	m.closeList()
}

// Focused reports whether the input has focus.
func (m Model) Focused() bool { return m.Input.Focused() }

// Open reports whether the suggestion list is shown.
func (m Model) Open() bool { return m.open }

// Items returns the ranked suggestions on display.
func (m Model) Items() []string { return m.items }

// Cursor is the highlighted suggestion index.
func (m Model) Cursor() int { return m.cursor }

// Err is the last lookup failure, if any.
func (m Model) Err() error { return m.err }

func (m *Model) closeList() {
	m.open = false
	m.loading = false
	m.items = nil
	m.cursor = 0
}

// Update handles keys for a focused field and its own debounce and results.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case debounceMsg:
		if msg.id != m.id || msg.gen != m.gen {
			return m, nil
		}
		return m.issue()

	case resultMsg:
		if msg.id != m.id {
			return m, nil
		}
		return m.apply(msg), nil

	case tea.KeyMsg:
		if !m.Input.Focused() {
			return m, nil
		}
		switch msg.String() {
		case "up":
			if m.open && m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down":
			if m.open && m.cursor < len(m.visible())-1 {
				m.cursor++
			}
			return m, nil
		case "enter":
			if m.open && len(m.items) > 0 {
				return m.Select(m.cursor)
			}
			return m, nil
		case "esc":
			if m.open {
				m.closeList()
			}
			return m, nil
		}

		before := m.Input.Value()
		var cmd tea.Cmd
		m.Input, cmd = m.Input.Update(msg)
		if m.Input.Value() == before {
			return m, cmd
		}
		return m, tea.Batch(cmd, m.edited())
	}
	return m, nil
}

// edited schedules a debounced lookup for the new text.
func (m *Model) edited() tea.Cmd {
	m.gen++
	if NormalizeQuery(m.Input.Value()) == "" && !m.opts.QueryEmpty {
		// Nothing to look up; also fence off responses already in flight.
		m.issued = m.gen
		m.closeList()
		return nil
	}
	id, gen := m.id, m.gen
	if m.opts.Debounce == 0 {
		return func() tea.Msg { return debounceMsg{id: id, gen: gen} }
	}
	return tea.Tick(m.opts.Debounce, func(time.Time) tea.Msg {
		return debounceMsg{id: id, gen: gen}
	})
}

func (m Model) issue() (Model, tea.Cmd) {
	q := NormalizeQuery(m.Input.Value())
	if q == "" && !m.opts.QueryEmpty {
		return m, nil
	}
	m.issued = m.gen
	m.loading = true
	m.err = nil

	id, gen, lookup, timeout := m.id, m.gen, m.lookup, m.opts.Timeout
	return m, func() tea.Msg {
		if lookup == nil {
			return resultMsg{id: id, gen: gen, query: q}
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		items, err := lookup(ctx, q)
		return resultMsg{id: id, gen: gen, query: q, items: items, err: err}
	}
}

func (m Model) apply(msg resultMsg) Model {
	// Only the newest lookup, for text that has not changed since, may land.
	if msg.gen != m.issued || msg.gen != m.gen || msg.gen <= m.applied {
		return m
	}
	m.applied = msg.gen
	m.loading = false
	m.query = msg.query
	m.cursor = 0
	if msg.err != nil {
		m.err = msg.err
		m.items = nil
		m.open = false
		return m
	}
	m.err = nil
	m.items = Rank(msg.query, msg.items)
	m.open = true
	return m
}

// Rank orders items by fuzzy distance to query. Items that do not fuzzy-match
// keep their server order after the matches.
func Rank(query string, items []string) []string {
	if query == "" || len(items) < 2 {
		return items
	}
	ranks := fuzzy.RankFindFold(query, items)
	sort.Stable(ranks)

	out := make([]string, 0, len(items))
	seen := make(map[int]bool, len(ranks))
	for _, r := range ranks {
		out = append(out, r.Target)
		seen[r.OriginalIndex] = true
	}
	for i, it := range items {
		if !seen[i] {
			out = append(out, it)
		}
	}
	return out
}

// Select writes suggestion i into the input and closes the list.
func (m Model) Select(i int) (Model, tea.Cmd) {
	if i < 0 || i >= len(m.items) {
		return m, nil
	}
	v := m.items[i]
	m.SetValue(v)
	m.Input.CursorEnd()
	name := m.Name
	return m, func() tea.Msg { return ChangedMsg{Name: name, Value: v} }
}

func (m Model) visible() []string {
	if len(m.items) > m.opts.MaxVisible {
		return m.items[:m.opts.MaxVisible]
	}
	return m.items
}

// View renders the label, input and, when open, the suggestion list.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(labelStyle.Render(m.Label + ": "))
	b.WriteString(m.Input.View())
	if m.loading && m.Input.Focused() {
		b.WriteString(hintStyle.Render("  searching..."))
	}
	if !m.open {
		return b.String()
	}
	if len(m.items) == 0 {
		b.WriteString("\n  ")
		b.WriteString(hintStyle.Render("no results"))
		return b.String()
	}
	for i, it := range m.visible() {
		b.WriteString("\n")
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("▸ " + it))
		} else {
			b.WriteString(itemStyle.Render("  " + it))
		}
	}
	if extra := len(m.items) - len(m.visible()); extra > 0 {
		b.WriteString("\n  ")
		b.WriteString(hintStyle.Render(fmt.Sprintf("... %d more", extra)))
	}
	return b.String()
}

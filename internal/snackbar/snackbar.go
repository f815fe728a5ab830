// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package snackbar is a single-slot transient notification for bubbletea
// programs. A newer notification replaces the current one and restarts its
// auto-dismiss timer.
package snackbar

import (
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Kind selects the notification color.
type Kind int

const (
	Info Kind = iota
	Positive
	Negative
)

func (k Kind) String() string {
	switch k {
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	default:
		return "info"
	}
}

// DefaultDuration is used when a Model has no duration set.
const DefaultDuration = 3 * time.Second

var lastID int64

func nextID() int { return int(atomic.AddInt64(&lastID, 1)) }

var (
	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("24")).
			Padding(0, 1)

	positiveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("232")).
			Background(lipgloss.Color("82")).
			Padding(0, 1)

	negativeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("160")).
			Padding(0, 1)
)

// dismissMsg hides the notification shown with sequence seq.
type dismissMsg struct {
	id  int
	seq int
}

// Model holds at most one visible notification.
type Model struct {
	Duration time.Duration

	id      int
	seq     int
	message string
	kind    Kind
	visible bool
}

// New creates a Model that dismisses after d.
func New(d time.Duration) Model {
	return Model{Duration: d, id: nextID()}
}

// Notify shows message and returns the command that dismisses it.
func (m Model) Notify(message string, kind Kind) (Model, tea.Cmd) {
	if m.id == 0 {
		m.id = nextID()
	}
	m.seq++
	m.message = message
	m.kind = kind
	m.visible = true

	d := m.Duration
	if d <= 0 {
		d = DefaultDuration
	}
	id, seq := m.id, m.seq
	return m, tea.Tick(d, func(time.Time) tea.Msg {
		return dismissMsg{id: id, seq: seq}
	})
}

// Close hides the notification now. A pending dismiss tick becomes stale.
func (m Model) Close() Model {
	m.seq++
	m.visible = false
	return m
}

// Update handles dismiss ticks.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(dismissMsg); ok {
		if msg.id == m.id && msg.seq == m.seq {
			m.visible = false
		}
	}
	return m, nil
}

// Visible reports whether a notification is shown.
func (m Model) Visible() bool { return m.visible }

// Message returns the current text, empty when hidden.
func (m Model) Message() string {
	if !m.visible {
		return ""
	}
	return m.message
}

// Kind returns the kind of the current notification.
func (m Model) Kind() Kind { return m.kind }

// View renders the notification, or nothing when hidden.
func (m Model) View() string {
	if !m.visible {
		return ""
	}
	switch m.kind {
	case Positive:
		return positiveStyle.Render("✓ " + m.message)
	case Negative:
		return negativeStyle.Render("✗ " + m.message)
	default:
		return infoStyle.Render(m.message)
	}
}

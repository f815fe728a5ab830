// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package simprogress animates a progress bar while a single request is in
// flight. The backend reports no progress, so the bar creeps toward a ceiling
// and only reaches 100% when Complete is called.
package simprogress

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Ceiling is the highest percent reached without Complete.
const Ceiling = 0.95

// DefaultInterval is used when a Model has no interval set.
const DefaultInterval = 200 * time.Millisecond

var labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

type tickMsg struct {
	gen int
}

// Model is a simulated progress indicator.
type Model struct {
	Interval time.Duration
	Label    string

	bar     progress.Model
	percent float64
	gen     int
	running bool
	done    bool
}

// New creates an idle indicator ticking every interval.
func New(interval time.Duration) Model {
	return Model{
		Interval: interval,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
}

// Step returns the increment applied at percent p.
func Step(p float64) float64 {
	switch {
	case p < 0.30:
		return 0.03
	case p < 0.60:
		return 0.015
	case p < 0.80:
		return 0.0075
	case p < Ceiling:
		return 0.0025
	default:
		return 0
	}
}

// Advance returns the next percent after p, never above Ceiling.
func Advance(p float64) float64 {
	next := p + Step(p)
	if next > Ceiling {
		next = Ceiling
	}
	if next < p {
		return p
	}
	return next
}

// Start resets to 0% and begins ticking. Any earlier tick chain goes stale.
func (m Model) Start() (Model, tea.Cmd) {
	m.gen++
	m.percent = 0
	m.running = true
	m.done = false
	return m, m.tick()
}

// Complete stops ticking and jumps to 100%.
func (m Model) Complete() Model {
	m.gen++
	m.running = false
	m.done = true
	m.percent = 1
	return m
}

// Reset stops ticking and returns to 0%.
func (m Model) Reset() Model {
	m.gen++
	m.running = false
	m.done = false
	m.percent = 0
	return m
}

func (m Model) tick() tea.Cmd {
	d := m.Interval
	if d <= 0 {
		d = DefaultInterval
	}
	gen := m.gen
	return tea.Tick(d, func(time.Time) tea.Msg {
		return tickMsg{gen: gen}
	})
}

// Update advances on the live tick chain and drops stale ticks.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if !m.running || msg.gen != m.gen {
			return m, nil
		}
		m.percent = Advance(m.percent)
		return m, m.tick()
	case tea.WindowSizeMsg:
		m.SetWidth(msg.Width - 10)
	}
	return m, nil
}

// SetWidth sets the bar width in cells.
func (m *Model) SetWidth(w int) {
	if w < 10 {
		w = 10
	}
	if w > 60 {
		w = 60
	}
	m.bar.Width = w
}

// Percent is the displayed fraction in [0,1].
func (m Model) Percent() float64 { return m.percent }

// Running reports whether ticks are advancing the bar.
func (m Model) Running() bool { return m.running }

// Done reports whether Complete was called since the last Start or Reset.
func (m Model) Done() bool { return m.done }

// View renders the bar and a percent or "done" label.
func (m Model) View() string {
	label := fmt.Sprintf("%3.0f%%", m.percent*100)
	if m.done {
		label = "done"
	}
	if m.Label != "" {
		label = m.Label + " " + label
	}
	return m.bar.ViewAs(m.percent) + " " + labelStyle.Render(label)
}

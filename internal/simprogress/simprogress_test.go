// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package simprogress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepSchedule(t *testing.T) {
	tests := []struct {
		at   float64
		want float64
	}{
		{0, 0.03},
		{0.29, 0.03},
		{0.30, 0.015},
		{0.59, 0.015},
		{0.60, 0.0075},
		{0.80, 0.0025},
		{0.95, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Step(tt.at), 1e-9, "step at %.2f", tt.at)
	}
}

func TestAdvanceIsMonotonicAndCapped(t *testing.T) {
	p := 0.0
	for i := 0; i < 1000; i++ {
		next := Advance(p)
		require.GreaterOrEqual(t, next, p)
		require.LessOrEqual(t, next, Ceiling)
		p = next
	}
	assert.InDelta(t, Ceiling, p, 1e-9)
}

func TestTicksAdvanceUntilComplete(t *testing.T) {
	m, cmd := New(time.Millisecond).Start()
	require.NotNil(t, cmd)
	assert.True(t, m.Running())

	msg := cmd()
	m, cmd = m.Update(msg)
	assert.InDelta(t, 0.03, m.Percent(), 1e-9)
	require.NotNil(t, cmd, "live chain schedules the next tick")

	m = m.Complete()
	assert.Equal(t, 1.0, m.Percent())
	assert.True(t, m.Done())
	assert.Contains(t, m.View(), "done")

	m, cmd = m.Update(cmd())
	assert.Nil(t, cmd, "tick after Complete is dropped")
	assert.Equal(t, 1.0, m.Percent())
}

func TestRestartDropsOldChain(t *testing.T) {
	m, first := New(time.Millisecond).Start()
	m, _ = m.Update(first())
	m, second := m.Start()
	assert.Zero(t, m.Percent())

	// A tick from the first chain is stale: no advance, no reschedule.
	stale := tickMsg{gen: m.gen - 1}
	m, cmd := m.Update(stale)
	assert.Nil(t, cmd)
	assert.Zero(t, m.Percent())

	m, cmd = m.Update(second())
	assert.NotNil(t, cmd)
	assert.InDelta(t, 0.03, m.Percent(), 1e-9)
}

func TestResetStops(t *testing.T) {
	m, cmd := New(time.Millisecond).Start()
	m, next := m.Update(cmd())
	m = m.Reset()
	assert.Zero(t, m.Percent())
	assert.False(t, m.Running())
	assert.False(t, m.Done())

	m, after := m.Update(next())
	assert.Nil(t, after)
	assert.Zero(t, m.Percent())
}

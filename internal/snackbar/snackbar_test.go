// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package snackbar

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyThenDismiss(t *testing.T) {
	m := New(time.Millisecond)
	m, cmd := m.Notify("匯入成功", Positive)
	require.NotNil(t, cmd)
	assert.True(t, m.Visible())
	assert.Equal(t, "匯入成功", m.Message())
	assert.Contains(t, m.View(), "匯入成功")

	m, _ = m.Update(cmd())
	assert.False(t, m.Visible())
	assert.Empty(t, m.View())
}

func TestNewerNotifyRestartsTimer(t *testing.T) {
	m := New(time.Millisecond)
	m, first := m.Notify("first", Info)
	m, second := m.Notify("second", Negative)

	// The first timer fires but belongs to a replaced notification.
	m, _ = m.Update(first())
	assert.True(t, m.Visible())
	assert.Equal(t, "second", m.Message())
	assert.Equal(t, Negative, m.Kind())

	m, _ = m.Update(second())
	assert.False(t, m.Visible())
}

func TestCloseHidesImmediately(t *testing.T) {
	m := New(time.Millisecond)
	m, cmd := m.Notify("x", Info)
	m = m.Close()
	assert.False(t, m.Visible())

	// A late tick must not resurrect or disturb anything.
	m, _ = m.Update(cmd())
	assert.False(t, m.Visible())
}

func TestTicksFromOtherModelsIgnored(t *testing.T) {
	a := New(time.Millisecond)
	b := New(time.Millisecond)
	a, cmdA := a.Notify("a", Info)
	b, _ = b.Notify("b", Info)

	b, _ = b.Update(cmdA())
	assert.True(t, b.Visible())
	assert.True(t, a.Visible())
}

func TestZeroModelIsSilent(t *testing.T) {
	var m Model
	assert.Empty(t, m.View())
	m, cmd := m.Update(dismissMsg{})
	assert.Nil(t, cmd)
	assert.False(t, m.Visible())

	m, cmd = m.Notify("works without New", Info)
	assert.NotNil(t, cmd)
	assert.True(t, m.Visible())
}

func TestKindRendering(t *testing.T) {
	tests := []struct {
		kind   Kind
		marker string
	}{
		{Positive, "✓"},
		{Negative, "✗"},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			m, _ := New(time.Second).Notify("msg", tt.kind)
			assert.True(t, strings.Contains(m.View(), tt.marker))
		})
	}
}

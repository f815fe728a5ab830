// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package selection

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latiju/wastectl/pkg/wasteapi"
)

func keys(n int) []wasteapi.ManifestKey {
	out := make([]wasteapi.ManifestKey, n)
	for i := range out {
		t := wasteapi.Disposal
		if i%2 == 1 {
			t = wasteapi.Reuse
		}
		out[i] = wasteapi.ManifestKey{Type: t, ManifestID: "M" + string(rune('A'+i)), WasteID: "W1"}
	}
	return out
}

// allChecked recomputes the invariant from scratch.
func allChecked(s *Set) bool {
	if s.Len() == 0 {
		return false
	}
	for _, k := range s.Rows() {
		if !s.IsSelected(k) {
			return false
		}
	}
	return true
}

func TestEmptySetIsNotAllSelected(t *testing.T) {
	s := New(nil)
	assert.False(t, s.AllSelected())
	s.SetAll(true)
	assert.False(t, s.AllSelected())
	assert.Empty(t, s.Selected())
}

func TestToggleUpdatesSelectAll(t *testing.T) {
	rows := keys(3)
	s := New(rows)

	for _, k := range rows {
		assert.False(t, s.AllSelected())
		assert.True(t, s.Toggle(k))
	}
	assert.True(t, s.AllSelected())

	assert.False(t, s.Toggle(rows[1]))
	assert.False(t, s.AllSelected())
	assert.Equal(t, []wasteapi.ManifestKey{rows[0], rows[2]}, s.Selected())
}

func TestSetAllThenUncheckOne(t *testing.T) {
	rows := keys(4)
	s := New(rows)
	s.SetAll(true)
	assert.True(t, s.AllSelected())
	assert.Equal(t, 4, s.Count())

	s.Set(rows[2], false)
	assert.False(t, s.AllSelected())
	assert.Equal(t, 3, s.Count())

	s.Clear()
	assert.Zero(t, s.Count())
	assert.Equal(t, 4, s.Len())
}

func TestUnknownKeyIgnored(t *testing.T) {
	s := New(keys(1))
	stray := wasteapi.ManifestKey{Type: wasteapi.Disposal, ManifestID: "X", WasteID: "Y"}
	assert.False(t, s.Toggle(stray))
	s.Set(stray, true)
	assert.Zero(t, s.Count())
}

func TestRemoveKeepsInvariant(t *testing.T) {
	rows := keys(3)
	s := New(rows)
	s.Set(rows[0], true)
	s.Set(rows[1], true)
	assert.False(t, s.AllSelected())

	// Removing the only unchecked row leaves every remaining row checked.
	s.Remove([]wasteapi.ManifestKey{rows[2]})
	assert.True(t, s.AllSelected())

	s.Remove(s.Selected())
	assert.Zero(t, s.Len())
	assert.False(t, s.AllSelected())
}

func TestLoadCollapsesDuplicatesAndClears(t *testing.T) {
	rows := keys(2)
	s := New(append(rows, rows[0]))
	require.Equal(t, 2, s.Len())
	s.SetAll(true)
	s.Load(keys(3))
	assert.Zero(t, s.Count())
	assert.False(t, s.AllSelected())
}

func TestRandomMutationsKeepInvariant(t *testing.T) {
	rows := keys(6)
	s := New(rows)
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		k := rows[rng.Intn(len(rows))]
		switch rng.Intn(5) {
		case 0:
			s.Toggle(k)
		case 1:
			s.Set(k, rng.Intn(2) == 0)
		case 2:
			s.SetAll(rng.Intn(2) == 0)
		case 3:
			s.Clear()
		case 4:
			if rng.Intn(10) == 0 {
				s.Load(rows)
			} else {
				s.Toggle(k)
			}
		}
		require.Equal(t, allChecked(s), s.AllSelected(), "step %d", i)
	}
}

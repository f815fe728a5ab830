// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package selection tracks which loaded manifests are checked for a batch
// action. The select-all flag is kept equal to the AND of every row's
// checkbox after each mutation.
package selection

import (
	"github.com/latiju/wastectl/pkg/wasteapi"
)

// Set is the checked subset of the loaded rows. Not safe for concurrent use;
// the UI event loop is the only writer.
type Set struct {
	rows     []wasteapi.ManifestKey
	index    map[wasteapi.ManifestKey]int
	checked  map[wasteapi.ManifestKey]bool
	allCheck bool
}

// New returns a Set over rows, none checked.
func New(rows []wasteapi.ManifestKey) *Set {
	s := &Set{}
	s.Load(rows)
	return s
}

// Load replaces the rows and clears the selection. Duplicate keys collapse.
func (s *Set) Load(rows []wasteapi.ManifestKey) {
	s.rows = make([]wasteapi.ManifestKey, 0, len(rows))
	s.index = make(map[wasteapi.ManifestKey]int, len(rows))
	s.checked = make(map[wasteapi.ManifestKey]bool)
	for _, k := range rows {
		if _, dup := s.index[k]; dup {
			continue
		}
		s.index[k] = len(s.rows)
		s.rows = append(s.rows, k)
	}
	s.sync()
}

func (s *Set) sync() {
	if len(s.rows) == 0 {
		s.allCheck = false
		return
	}
	for _, k := range s.rows {
		if !s.checked[k] {
			s.allCheck = false
			return
		}
	}
	s.allCheck = true
}

// Rows returns the loaded keys in display order.
func (s *Set) Rows() []wasteapi.ManifestKey { return s.rows }

// Len is the number of loaded rows.
func (s *Set) Len() int { return len(s.rows) }

// Contains reports whether key is a loaded row.
func (s *Set) Contains(key wasteapi.ManifestKey) bool {
	_, ok := s.index[key]
	return ok
}

// Toggle flips key and returns its new state. Unknown keys are ignored.
func (s *Set) Toggle(key wasteapi.ManifestKey) bool {
	if !s.Contains(key) {
		return false
	}
	s.Set(key, !s.checked[key])
	return s.checked[key]
}

// Set checks or unchecks one row.
func (s *Set) Set(key wasteapi.ManifestKey, on bool) {
	if !s.Contains(key) {
		return
	}
	if on {
		s.checked[key] = true
	} else {
		delete(s.checked, key)
	}
	s.sync()
}

// SetAll checks or unchecks every loaded row.
func (s *Set) SetAll(on bool) {
	s.checked = make(map[wasteapi.ManifestKey]bool, len(s.rows))
	if on {
		for _, k := range s.rows {
			s.checked[k] = true
		}
	}
	s.sync()
}

// IsSelected reports whether key is checked.
func (s *Set) IsSelected(key wasteapi.ManifestKey) bool { return s.checked[key] }

// AllSelected is the select-all checkbox state; false for zero rows.
func (s *Set) AllSelected() bool { return s.allCheck }

// Count is the number of checked rows.
func (s *Set) Count() int { return len(s.checked) }

// Selected returns the checked keys in display order.
func (s *Set) Selected() []wasteapi.ManifestKey {
	out := make([]wasteapi.ManifestKey, 0, len(s.checked))
	for _, k := range s.rows {
		if s.checked[k] {
			out = append(out, k)
		}
	}
	return out
}

// Remove drops rows, typically after they were deleted server-side.
func (s *Set) Remove(keys []wasteapi.ManifestKey) {
	if len(keys) == 0 {
		return
	}
	drop := make(map[wasteapi.ManifestKey]bool, len(keys))
	for _, k := range keys {
		drop[k] = true
	}
	kept := make([]wasteapi.ManifestKey, 0, len(s.rows))
	for _, k := range s.rows {
		if drop[k] {
			delete(s.checked, k)
			continue
		}
		kept = append(kept, k)
	}
	s.rows = kept
	s.index = make(map[wasteapi.ManifestKey]int, len(s.rows))
	for i, k := range s.rows {
		s.index[k] = i
	}
	s.sync()
}

// Clear unchecks everything but keeps the rows.
func (s *Set) Clear() { s.SetAll(false) }

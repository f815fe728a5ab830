// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package presets provides saved manifest filters for wastectl.
//
// Presets are named, reusable filter sets that can be:
// - Built-in (shipped with wastectl)
// - User-defined (~/.wastectl/presets.yaml)
//
// Built-ins cover the common list views:
// - unconfirmed: manifests still waiting for confirmation
// - disposal / reuse: one manifest type only
// - infectious: infectious medical waste codes
package presets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/latiju/wastectl/pkg/wasteapi"
)

// Categories a preset can belong to.
const (
	CategoryBuiltin = "builtin"
	CategoryUser    = "user"
)

// ErrNotFound is returned for an unknown preset name.
var ErrNotFound = errors.New("preset not found")

// Preset is a named, reusable filter set
type Preset struct {
	Name        string           `yaml:"name" json:"name"`
	Description string           `yaml:"description" json:"description"`
	Filters     wasteapi.Filters `yaml:"filters" json:"filters"`
	Category    string           `yaml:"-" json:"category"`
}

// Builtin presets are shipped with wastectl
var Builtin = []Preset{
	{
		Name:        "unconfirmed",
		Description: "Manifests not yet confirmed",
		Filters:     wasteapi.Filters{ConfirmationStatus: "unconfirmed"},
	},
	{
		Name:        "confirmed",
		Description: "Confirmed manifests",
		Filters:     wasteapi.Filters{ConfirmationStatus: "confirmed"},
	},
	{
		Name:        "disposal",
		Description: "Disposal manifests only",
		Filters:     wasteapi.Filters{ManifestType: string(wasteapi.Disposal)},
	},
	{
		Name:        "reuse",
		Description: "Reuse manifests only",
		Filters:     wasteapi.Filters{ManifestType: string(wasteapi.Reuse)},
	},
	{
		Name:        "infectious",
		Description: "Infectious medical waste (D-1801)",
		Filters:     wasteapi.Filters{WasteCode: "D-1801"},
	},
}

// DefaultFile is ~/.wastectl/presets.yaml
func DefaultFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".wastectl", "presets.yaml")
}

type userFile struct {
	Presets []Preset `yaml:"presets"`
}

// Store holds built-in and user presets. User presets live in one yaml file.
type Store struct {
	path    string
	presets []Preset
}

// Open loads the built-ins and the user file at path. A missing file is
// not an error.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("could not determine presets file")
	}
	s := &Store{path: path}
	for _, p := range Builtin {
		p.Category = CategoryBuiltin
		s.presets = append(s.presets, p)
	}
	user, err := s.loadUser()
	if err != nil {
		return nil, err
	}
	s.presets = append(s.presets, user...)
	return s, nil
}

// Path is the user presets file.
func (s *Store) Path() string { return s.path }

func (s *Store) loadUser() ([]Preset, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read presets file: %w", err)
	}
	var f userFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse presets file: %w", err)
	}
	for i := range f.Presets {
		f.Presets[i].Category = CategoryUser
	}
	return f.Presets, nil
}

func (s *Store) writeUser(user []Preset) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(&userFile{Presets: user})
	if err != nil {
		return fmt.Errorf("marshal presets: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write presets file: %w", err)
	}
	return nil
}

// List returns all presets, built-in first.
func (s *Store) List() []Preset { return s.presets }

// ListBuiltin returns only built-in presets
func (s *Store) ListBuiltin() []Preset { return s.byCategory(CategoryBuiltin) }

// ListUser returns only user-defined presets
func (s *Store) ListUser() []Preset { return s.byCategory(CategoryUser) }

func (s *Store) byCategory(c string) []Preset {
	result := make([]Preset, 0)
	for _, p := range s.presets {
		if p.Category == c {
			result = append(result, p)
		}
	}
	return result
}

// Get returns a preset by name. A user preset shadows a built-in one.
func (s *Store) Get(name string) (Preset, error) {
	var found *Preset
	for i := range s.presets {
		if s.presets[i].Name == name {
			found = &s.presets[i]
		}
	}
	if found == nil {
		return Preset{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return *found, nil
}

// Save adds or replaces a user preset.
func (s *Store) Save(p Preset) error {
	if p.Name == "" {
		return fmt.Errorf("preset name is required")
	}
	if err := p.Filters.Validate(); err != nil {
		return err
	}
	if p.Filters.IsEmpty() {
		return fmt.Errorf("preset %q has no filters", p.Name)
	}
	p.Category = CategoryUser

	user := s.ListUser()
	replaced := false
	for i := range user {
		if user[i].Name == p.Name {
			user[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		user = append(user, p)
	}
	if err := s.writeUser(user); err != nil {
		return err
	}
	s.presets = append(s.ListBuiltin(), user...)
	return nil
}

// Delete removes a user preset. Built-ins cannot be deleted.
func (s *Store) Delete(name string) error {
	user := s.ListUser()
	filtered := make([]Preset, 0, len(user))
	for _, p := range user {
		if p.Name != name {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) == len(user) {
		for _, p := range Builtin {
			if p.Name == name {
				return fmt.Errorf("preset %q is built in and cannot be deleted", name)
			}
		}
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err := s.writeUser(filtered); err != nil {
		return err
	}
	s.presets = append(s.ListBuiltin(), filtered...)
	return nil
}

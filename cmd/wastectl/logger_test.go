// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/latiju/wastectl/internal/importflow"
	"github.com/latiju/wastectl/pkg/wasteapi"
)

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	return string(content)
}

func TestNewRunLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	logger, err := NewRunLogger(dir, "test", logrus.InfoLevel)
	if err != nil {
		t.Fatalf("NewRunLogger failed: %v", err)
	}

	logger.Log("Test message %d", 1)
	logger.Section("TEST SECTION")
	logger.Log("Another message")

	logPath := logger.Close()
	if logPath == "" {
		t.Fatal("Expected log path, got empty string")
	}
	if !strings.HasPrefix(filepath.Base(logPath), "test-") {
		t.Errorf("Unexpected log path: %s", logPath)
	}

	contentStr := readLog(t, logPath)
	for _, want := range []string{"wastectl: test", "Test message 1", "--- TEST SECTION ---", "Another message", "Completed:"} {
		if !strings.Contains(contentStr, want) {
			t.Errorf("Missing %q in log", want)
		}
	}
}

func TestLogConflicts(t *testing.T) {
	logger, err := NewRunLogger(t.TempDir(), "conflicts-test", logrus.InfoLevel)
	if err != nil {
		t.Fatalf("NewRunLogger failed: %v", err)
	}

	logger.LogConflicts([]wasteapi.ConflictRecord{
		{
			ManifestID:   "M00001",
			WasteID:      "W1",
			CompanyName:  "台大醫院",
			ExistingData: map[string]string{"申報重量": "12.5"},
			NewData:      map[string]string{"申報重量": "13"},
		},
	})
	contentStr := readLog(t, logger.Close())

	if !strings.Contains(contentStr, "Found 1 conflicting records") {
		t.Error("Missing conflict count")
	}
	if !strings.Contains(contentStr, "M00001/W1") {
		t.Error("Missing record key")
	}
	if !strings.Contains(contentStr, "differing_fields=1") {
		t.Error("Missing differing field count")
	}
}

func TestLogDecisionAndResult(t *testing.T) {
	logger, err := NewRunLogger(t.TempDir(), "result-test", logrus.InfoLevel)
	if err != nil {
		t.Fatalf("NewRunLogger failed: %v", err)
	}

	logger.LogFile(&importflow.File{Path: "/tmp/a.csv", Name: "a.csv", Size: 10}, wasteapi.Reuse)
	logger.LogDecision(map[string]int{"replace": 2, "skip": 1}, importflow.Decision{Resolution: wasteapi.Skip, Mixed: true})
	logger.LogResult(importflow.Result{Imported: 5, Skipped: 2, Total: 7}, "", nil)
	contentStr := readLog(t, logger.Close())

	for _, want := range []string{"--- UPLOAD ---", "type=reuse", "replace: 2 records", "mixed=true", "Imported: 5", "Skipped: 2", "Total: 7"} {
		if !strings.Contains(contentStr, want) {
			t.Errorf("Missing %q in log", want)
		}
	}
}

func TestLogDirectoryCreation(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	logger, err := NewRunLogger(dir, "dir-test", logrus.InfoLevel)
	if err != nil {
		t.Fatalf("NewRunLogger failed: %v", err)
	}
	logger.Close()

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("Log directory not created: %v", err)
	}
	if !info.IsDir() {
		t.Errorf("Expected %s to be a directory", dir)
	}
}

func TestNilLoggerSafety(t *testing.T) {
	var logger *RunLogger

	// These should not panic
	logger.Log("test")
	logger.Section("test")
	logger.LogFile(nil, wasteapi.Disposal)
	logger.LogConflicts(nil)
	logger.LogDecision(nil, importflow.Decision{})
	logger.LogResult(importflow.Result{}, "", nil)
	if logger.Logger() == nil {
		t.Error("Expected fallback logger")
	}
	path := logger.Close()

	if path != "" {
		t.Errorf("Expected empty path from nil logger, got: %s", path)
	}
}

func TestCloseTwice(t *testing.T) {
	logger, err := NewRunLogger(t.TempDir(), "twice", logrus.InfoLevel)
	if err != nil {
		t.Fatalf("NewRunLogger failed: %v", err)
	}
	if logger.Close() == "" {
		t.Fatal("Expected path from first close")
	}
	if path := logger.Close(); path != "" {
		t.Errorf("Expected empty path from second close, got %s", path)
	}
	logger.Log("after close")
}

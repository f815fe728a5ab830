// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/latiju/wastectl/internal/importflow"
	"github.com/latiju/wastectl/pkg/wasteapi"
)

// RunLogger logs one interactive run to a file, since the TUI owns the terminal.
type RunLogger struct {
	file      *os.File
	logger    *logrus.Logger
	startTime time.Time
	command   string
}

// NewRunLogger creates <dir>/<command>-<timestamp>.log
func NewRunLogger(dir, command string, level logrus.Level) (*RunLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02-150405")
	logPath := filepath.Join(dir, fmt.Sprintf("%s-%s.log", command, timestamp))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(file)
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true, TimestampFormat: "15:04:05"})

	l := &RunLogger{
		file:      file,
		logger:    logger,
		startTime: time.Now(),
		command:   command,
	}
	l.writeHeader()
	return l, nil
}

func (l *RunLogger) writeHeader() {
	l.file.WriteString(strings.Repeat("=", 80) + "\n")
	l.file.WriteString(fmt.Sprintf("wastectl: %s\n", l.command))
	l.file.WriteString(fmt.Sprintf("Started: %s\n", l.startTime.Format(time.RFC3339)))
	l.file.WriteString(strings.Repeat("=", 80) + "\n\n")
}

// Logger is the structured logger writing to this file. Nil-safe: a nil
// RunLogger falls back to the command logger.
func (l *RunLogger) Logger() *logrus.Logger {
	if l == nil || l.logger == nil {
		return log
	}
	return l.logger
}

// Log writes a message to the log file
func (l *RunLogger) Log(format string, args ...interface{}) {
	if l == nil || l.file == nil {
		return
	}
	l.logger.Infof(format, args...)
}

// Section writes a section header
func (l *RunLogger) Section(title string) {
	if l == nil || l.file == nil {
		return
	}
	l.file.WriteString(fmt.Sprintf("\n--- %s ---\n", title))
}

// LogFile records the validated upload.
func (l *RunLogger) LogFile(f *importflow.File, t wasteapi.ManifestType) {
	if l == nil || l.file == nil || f == nil {
		return
	}
	l.Section("UPLOAD")
	l.logger.WithFields(logrus.Fields{
		"path":      f.Path,
		"name":      f.Name,
		"size":      f.Size,
		"mime":      f.MIME,
		"converted": f.Converted,
		"type":      t,
	}).Info("uploading file")
}

// LogConflicts writes the conflicting records and how many fields differ.
func (l *RunLogger) LogConflicts(records []wasteapi.ConflictRecord) {
	if l == nil || l.file == nil {
		return
	}
	l.Section("CONFLICTS")
	l.Log("Found %d conflicting records", len(records))
	for _, r := range records {
		l.Log("  %s/%s company=%s date=%s differing_fields=%d",
			r.ManifestID, r.WasteID, r.CompanyName, r.ReportDate, importflow.DiffCount(r))
	}
}

// LogDecision writes the resolution submitted for the conflicts.
func (l *RunLogger) LogDecision(choices map[string]int, d importflow.Decision) {
	if l == nil || l.file == nil {
		return
	}
	l.Section("DECISION")
	keys := make([]string, 0, len(choices))
	for k := range choices {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		l.Log("  %s: %d records", k, choices[k])
	}
	l.logger.WithFields(logrus.Fields{
		"resolution":   d.Resolution,
		"apply_to_all": d.ApplyToAll,
		"mixed":        d.Mixed,
	}).Info("submitting resolution")
}

// LogResult writes the operation result
func (l *RunLogger) LogResult(r importflow.Result, failure string, err error) {
	if l == nil || l.file == nil {
		return
	}
	l.Section("RESULT")
	if err != nil {
		l.logger.WithError(err).Error(failure)
	} else if failure != "" {
		l.logger.Error(failure)
	}
	if r.Message != "" {
		l.Log("Message: %s", r.Message)
	}
	l.Log("Imported: %d", r.Imported)
	l.Log("Skipped: %d", r.Skipped)
	l.Log("Total: %d", r.Total)
	if r.Cancelled {
		l.Log("Cancelled: true")
	}
	l.Log("Duration: %s", time.Since(l.startTime).Round(time.Millisecond))
}

// Close closes the log file and returns its path
func (l *RunLogger) Close() string {
	if l == nil || l.file == nil {
		return ""
	}

	l.file.WriteString(fmt.Sprintf("\n\nCompleted: %s\n", time.Now().Format(time.RFC3339)))
	l.file.WriteString(fmt.Sprintf("Duration: %s\n", time.Since(l.startTime).Round(time.Millisecond)))

	path := l.file.Name()
	l.file.Close()
	l.file = nil
	return path
}

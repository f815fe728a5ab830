// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package clierr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/latiju/wastectl/pkg/wasteapi"
)

func statusErr(code int, msg string) error {
	return &wasteapi.StatusError{Method: http.MethodPost, Path: "/waste_transport/import/", StatusCode: code, Status: http.StatusText(code), Message: msg}
}

func TestIsForbidden(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "403 status",
			err:      statusErr(http.StatusForbidden, ""),
			expected: true,
		},
		{
			name:     "missing csrf token",
			err:      fmt.Errorf("import: %w", wasteapi.ErrNoCSRFToken),
			expected: true,
		},
		{
			name:     "regular forbidden message",
			err:      errors.New("forbidden: you cannot do this"),
			expected: true,
		},
		{
			name:     "500 status",
			err:      statusErr(http.StatusInternalServerError, ""),
			expected: false,
		},
		{
			name:     "regular error",
			err:      errors.New("something went wrong"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsForbidden(tt.err)
			if got != tt.expected {
				t.Errorf("IsForbidden() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "404 status",
			err:      fmt.Errorf("detail: %w", statusErr(http.StatusNotFound, "")),
			expected: true,
		},
		{
			name:     "regular error",
			err:      errors.New("something went wrong"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsNotFound(tt.err)
			if got != tt.expected {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestIsNetworkError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "connection refused",
			err:      errors.New("dial tcp 127.0.0.1:8000: connection refused"),
			expected: true,
		},
		{
			name:     "no such host",
			err:      errors.New("dial tcp: lookup waste.local: no such host"),
			expected: true,
		},
		{
			name:     "context deadline exceeded",
			err:      errors.New("context deadline exceeded"),
			expected: true,
		},
		{
			name:     "non-2xx status",
			err:      statusErr(http.StatusBadGateway, ""),
			expected: true,
		},
		{
			name:     "regular error",
			err:      errors.New("something went wrong"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsNetworkError(tt.err)
			if got != tt.expected {
				t.Errorf("IsNetworkError() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "validation error",
			err:      Invalid("file", "only .csv files are accepted"),
			expected: TypeValidation,
		},
		{
			name:     "application error",
			err:      &wasteapi.AppError{Op: "delete manifests", Message: "未提供要移除的聯單"},
			expected: TypeApplication,
		},
		{
			name:     "forbidden error",
			err:      statusErr(http.StatusForbidden, ""),
			expected: TypeForbidden,
		},
		{
			name:     "not found error",
			err:      statusErr(http.StatusNotFound, ""),
			expected: TypeNotFound,
		},
		{
			name:     "network error",
			err:      errors.New("connection refused"),
			expected: TypeNetwork,
		},
		{
			name:     "internal error",
			err:      errors.New("unexpected error"),
			expected: TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			if got != tt.expected {
				t.Errorf("ClassifyError() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil error", err: nil, want: ""},
		{name: "server text wins", err: &wasteapi.AppError{Message: "檔案格式錯誤"}, want: "檔案格式錯誤"},
		{name: "status message", err: fmt.Errorf("wrap: %w", statusErr(http.StatusBadRequest, "無效的請求")), want: "無效的請求"},
		{name: "status without message", err: statusErr(http.StatusBadGateway, ""), want: "Upload failed"},
		{name: "validation reason", err: Invalid("file", "file exceeds 5 MiB"), want: "file: file exceeds 5 MiB"},
		{name: "network", err: errors.New("dial tcp: connection refused"), want: "Upload failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Message(tt.err, "Upload failed"); got != tt.want {
				t.Errorf("Message() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPretty(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantContain string
	}{
		{
			name:        "nil error",
			err:         nil,
			wantContain: "",
		},
		{
			name:        "forbidden error includes session hint",
			err:         errors.New("forbidden: access denied"),
			wantContain: "--session",
		},
		{
			name:        "network error includes connectivity hint",
			err:         errors.New("connection refused"),
			wantContain: "wastectl status",
		},
		{
			name:        "validation error",
			err:         Invalid("", "no file selected"),
			wantContain: "Invalid input: no file selected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Pretty(tt.err)
			if tt.wantContain != "" && !strings.Contains(got, tt.wantContain) {
				t.Errorf("Pretty() = %q, want to contain %q", got, tt.wantContain)
			}
		})
	}
}

func TestWrapWithHint(t *testing.T) {
	base := statusErr(http.StatusNotFound, "")
	err := WrapWithHint(base, "run wastectl manifests to list keys")
	if !IsNotFound(err) {
		t.Errorf("WrapWithHint() should keep the wrapped error classifiable")
	}
	if !strings.Contains(err.Error(), "Hint: run wastectl manifests") {
		t.Errorf("WrapWithHint() = %q, missing hint", err.Error())
	}
	if WrapWithHint(nil, "x") != nil {
		t.Errorf("WrapWithHint(nil) should be nil")
	}
}

func TestNothingFound(t *testing.T) {
	result := NothingFound("manifests")
	if !strings.Contains(result, "manifests") {
		t.Errorf("NothingFound() should contain resource name")
	}
	if !strings.HasPrefix(result, "No ") {
		t.Errorf("NothingFound() should start with 'No '")
	}
}

func TestUnwrap(t *testing.T) {
	root := errors.New("root")
	if got := Unwrap(fmt.Errorf("a: %w", fmt.Errorf("b: %w", root))); got != root {
		t.Errorf("Unwrap() = %v, want root", got)
	}
}

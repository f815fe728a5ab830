// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package clierr provides error classification and user-friendly error formatting for the CLI.
// It helps distinguish between different error types and provides actionable hints.
package clierr

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/latiju/wastectl/pkg/wasteapi"
)

// Common error types for CLI output.
const (
	TypeNotFound    = "not_found"   // Manifest or route not found
	TypeForbidden   = "forbidden"   // Permission or CSRF rejection
	TypeNetwork     = "network"     // Connection errors and non-2xx responses
	TypeApplication = "application" // success=false with server error text
	TypeInternal    = "internal"    // Internal/unexpected errors
	TypeValidation  = "validation"  // Input validation errors
)

// ValidationError is a client-side input failure. It never reaches the network.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation checks if the error is a client-side validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsApplication checks if the server answered but reported failure.
func IsApplication(err error) bool {
	var ae *wasteapi.AppError
	return errors.As(err, &ae)
}

// IsForbidden checks if the error is an access denied or CSRF error.
func IsForbidden(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, wasteapi.ErrNoCSRFToken) {
		return true
	}
	var se *wasteapi.StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusForbidden || se.StatusCode == http.StatusUnauthorized
	}
	// Also check for common forbidden error patterns in messages
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "forbidden") ||
		strings.Contains(msg, "access denied") ||
		strings.Contains(msg, "unauthorized")
}

// IsNotFound checks if the error indicates a missing manifest or route.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var se *wasteapi.StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusNotFound
	}
	return false
}

// IsNetworkError checks if the error is a connection/network error.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var se *wasteapi.StatusError
	if errors.As(err, &se) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "network is unreachable") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "context deadline exceeded")
}

// ClassifyError determines the type of error for appropriate handling.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	if IsValidation(err) {
		return TypeValidation
	}
	if IsApplication(err) {
		return TypeApplication
	}
	if IsForbidden(err) {
		return TypeForbidden
	}
	if IsNotFound(err) {
		return TypeNotFound
	}
	if IsNetworkError(err) {
		return TypeNetwork
	}
	return TypeInternal
}

// Message picks the text shown in a notification: the server's own error
// text when it sent one, the validation reason for input errors, otherwise
// generic.
func Message(err error, generic string) string {
	if err == nil {
		return ""
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	var ae *wasteapi.AppError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	var se *wasteapi.StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	if errors.Is(err, wasteapi.ErrNoCSRFToken) {
		return "No CSRF token available; refresh your session"
	}
	return generic
}

// Pretty formats an error with a user-friendly message and actionable hints.
func Pretty(err error) string {
	if err == nil {
		return ""
	}

	baseMsg := err.Error()

	switch ClassifyError(err) {
	case TypeValidation:
		return fmt.Sprintf("Invalid input: %s", baseMsg)

	case TypeApplication:
		return fmt.Sprintf("Server refused the request: %s", baseMsg)

	case TypeForbidden:
		return fmt.Sprintf("Access denied: %s\n\nHint: Check your session and permissions:\n"+
			"  - Copy the sessionid cookie from a signed-in browser into --session\n"+
			"  - Imports need the importer permission on your account", baseMsg)

	case TypeNotFound:
		return fmt.Sprintf("Not found: %s", baseMsg)

	case TypeNetwork:
		return fmt.Sprintf("Connection error: %s\n\nHint: Check the backend is reachable:\n"+
			"  - wastectl status to verify connection\n"+
			"  - Ensure --base-url points at the web app root", baseMsg)

	default:
		return fmt.Sprintf("Error: %s", baseMsg)
	}
}

// WrapWithHint wraps an error with an additional hint message.
func WrapWithHint(err error, hint string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w\n\nHint: %s", err, hint)
}

// NothingFound returns a user-friendly message when a query returns no results.
// This is different from an error - it's a valid "empty" result.
func NothingFound(resource string) string {
	return fmt.Sprintf("No %s found matching your criteria.\n\n"+
		"This might mean:\n"+
		"  - Nothing has been imported yet\n"+
		"  - Your filters are too restrictive\n"+
		"  - The records were removed", resource)
}

// Unwrap returns the underlying error, stripping any wrapper.
func Unwrap(err error) error {
	for {
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil {
			return err
		}
		err = unwrapped
	}
}

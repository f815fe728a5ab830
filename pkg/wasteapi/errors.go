package wasteapi

import (
	"errors"
	"fmt"
)

// ErrNoCSRFToken is returned when no anti-forgery token could be obtained
// for a mutating request.
var ErrNoCSRFToken = errors.New("csrf token unavailable: sign in through the web app or pass --csrf-token")

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
	// Message is the server's error text when the body carried one.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %s: %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Status)
}

// AppError reports a 2xx response with success=false.
type AppError struct {
	Op      string
	Message string
}

func (e *AppError) Error() string {
	if e.Message == "" {
		return e.Op + " failed"
	}
	return e.Message
}

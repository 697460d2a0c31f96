// Package scanerr defines the typed failures a scan can report.
package scanerr

import (
	"errors"
	"fmt"
	"time"
)

// Code identifies a failure class.
type Code string

const (
	NoBoundary           Code = "NO_BOUNDARY"
	OCRUnavailable       Code = "OCR_UNAVAILABLE"
	OCRTimeout           Code = "OCR_TIMEOUT"
	OCRLowConfidence     Code = "OCR_LOW_CONFIDENCE"
	NoNameExtracted      Code = "NO_NAME_EXTRACTED"
	NoMatch              Code = "NO_MATCH"
	SearchNetwork        Code = "SEARCH_NETWORK"
	Timeout              Code = "TIMEOUT"
	InvalidConfiguration Code = "INVALID_CONFIGURATION"
)

// Error is a scan failure with its code and the run it belongs to.
type Error struct {
	Code      Code
	Message   string
	RunID     string
	Timestamp time.Time
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error stamped with the current time.
func New(code Code, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// WithRun returns a copy of e tagged with a run ID.
func (e *Error) WithRun(runID string) *Error {
	c := *e
	c.RunID = runID
	return &c
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// Recoverable reports whether the user can retry or fall back to a manual
// search. Only configuration errors are fatal.
func Recoverable(code Code) bool {
	return code != InvalidConfiguration
}

// Factory functions for common errors

func NewTimeoutError(d time.Duration, cause error) *Error {
	return New(Timeout, fmt.Sprintf("scan timed out after %v", d), cause)
}

func NewOCRError(code Code, cause error) *Error {
	msg := "text recognition failed"
	switch code {
	case OCRTimeout:
		msg = "text recognition timed out"
	case OCRLowConfidence:
		msg = "text recognition confidence too low"
	case OCRUnavailable:
		msg = "text recognition engine unavailable"
	}
	return New(code, msg, cause)
}

func NewSearchError(query string, cause error) *Error {
	return New(SearchNetwork, fmt.Sprintf("catalog search failed for %q", query), cause)
}

func NewConfigError(format string, args ...any) *Error {
	return New(InvalidConfiguration, fmt.Sprintf(format, args...), nil)
}

// Package errors provides standardized error types and helpers for the CedarPress codebase.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a requested resource has no catalog entry
	ErrNotFound = errors.New("not found")
	// ErrFetch indicates a network or extraction failure while provisioning
	ErrFetch = errors.New("fetch failed")
	// ErrMalformedRequest indicates a structurally invalid resource request
	ErrMalformedRequest = errors.New("malformed request")
	// ErrParse indicates source content could not be parsed
	ErrParse = errors.New("parse failed")
	// ErrTypeset indicates the external typesetting tool failed
	ErrTypeset = errors.New("typeset failed")
	// ErrLedger indicates a run ledger read or write failure
	ErrLedger = errors.New("ledger error")
	// ErrInternal indicates an internal system error
	ErrInternal = errors.New("internal error")
)

// NotFoundError reports a resource with no usable catalog location.
type NotFoundError struct {
	Resource string // Resource spec (e.g., "en/ulb/gen")
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("resource not found: %s", e.Resource)
	}
	return "resource not found"
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// Is matches the sentinel even when a cause is attached.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// FetchError reports a failure while downloading, cloning, or extracting
// a resource.
type FetchError struct {
	URL   string // Remote location being fetched
	Stage string // Stage that failed (e.g., "download", "clone", "extract")
	Err   error  // Underlying error
}

func (e *FetchError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("fetch %s failed for %s: %v", e.Stage, e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s failed: %v", e.Stage, e.Err)
}

func (e *FetchError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrFetch
}

// Is matches the sentinel even when a cause is attached.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// MalformedRequestError reports a resource request that fails validation
// before any fetching is attempted.
type MalformedRequestError struct {
	Field string // Field that failed validation (e.g., "lang", "code")
	Value string // Offending value
	Err   error  // Underlying error, if any
}

func (e *MalformedRequestError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("malformed request: bad %s %q", e.Field, e.Value)
	}
	return "malformed request"
}

func (e *MalformedRequestError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrMalformedRequest
}

// Is matches the sentinel even when a cause is attached.
func (e *MalformedRequestError) Is(target error) bool { return target == ErrMalformedRequest }

// ParseError reports unparseable source content.
type ParseError struct {
	Format string // Format being parsed (e.g., "usfm", "markdown", "manifest")
	Path   string // File path, if applicable
	Line   int    // 1-based line number, 0 if unknown
	Err    error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	switch {
	case e.Path != "" && e.Line > 0:
		return fmt.Sprintf("failed to parse %s at %s:%d: %v", e.Format, e.Path, e.Line, e.Err)
	case e.Path != "":
		return fmt.Sprintf("failed to parse %s at %s: %v", e.Format, e.Path, e.Err)
	default:
		return fmt.Sprintf("failed to parse %s: %v", e.Format, e.Err)
	}
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrParse
}

// Is matches the sentinel even when a cause is attached.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// TypesetError reports a failed external typesetter invocation.
type TypesetError struct {
	Command string // Command that was run
	Stderr  string // Captured standard error output
	Err     error  // Underlying error
}

func (e *TypesetError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("typeset command %q failed: %v: %s", e.Command, e.Err, e.Stderr)
	}
	return fmt.Sprintf("typeset command %q failed: %v", e.Command, e.Err)
}

func (e *TypesetError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrTypeset
}

// Is matches the sentinel even when a cause is attached.
func (e *TypesetError) Is(target error) bool { return target == ErrTypeset }

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Helper functions for creating common errors

// NewNotFound creates a NotFoundError
func NewNotFound(resource string) *NotFoundError {
	return &NotFoundError{Resource: resource}
}

// NewFetch creates a FetchError
func NewFetch(stage, url string, err error) *FetchError {
	return &FetchError{
		URL:   url,
		Stage: stage,
		Err:   err,
	}
}

// NewMalformedRequest creates a MalformedRequestError
func NewMalformedRequest(field, value string) *MalformedRequestError {
	return &MalformedRequestError{
		Field: field,
		Value: value,
	}
}

// NewParse creates a ParseError
func NewParse(format, path string, err error) *ParseError {
	return &ParseError{
		Format: format,
		Path:   path,
		Err:    err,
	}
}

// NewTypeset creates a TypesetError
func NewTypeset(command, stderr string, err error) *TypesetError {
	return &TypesetError{
		Command: command,
		Stderr:  stderr,
		Err:     err,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

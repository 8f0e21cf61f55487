package patch

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies a patch failure. Codes are stable strings so callers can
// branch on them and surface them in machine-readable reports.
type ErrorCode string

const (
	// CodeMalformedHeader marks a missing/wrong file header or an unreadable hunk header.
	CodeMalformedHeader ErrorCode = "MALFORMED_HEADER"
	// CodeInvalidHunkBounds marks a hunk header with out-of-range start or length values.
	CodeInvalidHunkBounds ErrorCode = "INVALID_HUNK_BOUNDS"
	// CodeHunkLengthMismatch marks a hunk whose body disagrees with its header lengths.
	CodeHunkLengthMismatch ErrorCode = "HUNK_LENGTH_MISMATCH"
	// CodeOverlappingHunks marks two hunks claiming the same original line.
	CodeOverlappingHunks ErrorCode = "OVERLAPPING_HUNKS"
	// CodeMalformedLine marks a diff line without a recognised prefix.
	CodeMalformedLine ErrorCode = "MALFORMED_LINE"
	// CodeUnsupportedFeature marks syntax that is recognised but not honoured.
	CodeUnsupportedFeature ErrorCode = "UNSUPPORTED_FEATURE"
	// CodeContentMismatch marks an Equal/Delete line that differs from the original.
	CodeContentMismatch ErrorCode = "CONTENT_MISMATCH"
	// CodeBufferTooSmall marks a destination buffer below the required output size.
	CodeBufferTooSmall ErrorCode = "BUFFER_TOO_SMALL"
	// CodeSizeMismatch marks output whose length differs from the precomputed size.
	CodeSizeMismatch ErrorCode = "SIZE_MISMATCH"
	// CodeIO marks a failure of an underlying reader, writer or file.
	CodeIO ErrorCode = "IO"
)

// Error represents a structured failure while parsing or applying a patch. It
// satisfies the error interface so it can be returned directly from Apply*
// helpers.
type Error struct {
	Message string
	Code    ErrorCode
	// Line is the 1-based line of the diff text that caused the failure, or 0.
	Line int
	// LineText is the raw diff line at Line, when known.
	LineText string
	// OriginalLine is the 1-based line of the original text, set for content mismatches.
	OriginalLine int
	// Path names the document being patched, when the caller supplied one.
	Path string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	message := e.Message
	if message == "" {
		message = "patch error"
	}
	if e.Path != "" {
		message = e.Path + ": " + message
	}
	if e.Err != nil {
		return message + ": " + e.Err.Error()
	}
	return message
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CodeOf returns the ErrorCode carried by err, or "" when err is not (and does
// not wrap) a *Error.
func CodeOf(err error) ErrorCode {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

func parseError(code ErrorCode, line int, text string, format string, args ...any) *Error {
	return &Error{
		Message:  fmt.Sprintf(format, args...),
		Code:     code,
		Line:     line,
		LineText: text,
	}
}

func mismatchError(originalLine int, expected, actual string) *Error {
	return &Error{
		Message:      fmt.Sprintf("line %d of original text does not match the corresponding line in the patch (want %q, got %q)", originalLine, expected, actual),
		Code:         CodeContentMismatch,
		OriginalLine: originalLine,
	}
}

func ioError(err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return &Error{Message: "i/o failure", Code: CodeIO, Err: err}
}

// FormatError renders Error values into a human readable message suitable for
// surfacing to end users.
func FormatError(err *Error) string {
	if err == nil {
		return "Unknown error occurred."
	}
	message := err.Message
	if message == "" {
		message = "Unknown error occurred."
	}
	var parts []string
	if err.Path != "" {
		parts = append(parts, fmt.Sprintf("%s (%s)", message, displayPath(err.Path)))
	} else {
		parts = append(parts, message)
	}
	if err.Code != "" {
		parts = append(parts, fmt.Sprintf("Code: %s", err.Code))
	}
	if err.Line > 0 {
		parts = append(parts, "", fmt.Sprintf("Offending patch line %d:", err.Line), err.LineText)
	}
	if err.OriginalLine > 0 {
		parts = append(parts, "", fmt.Sprintf("Original line: %d", err.OriginalLine))
	}
	if err.Err != nil {
		parts = append(parts, "", fmt.Sprintf("Cause: %v", err.Err))
	}
	return strings.Join(parts, "\n")
}

func displayPath(path string) string {
	if strings.HasPrefix(path, "/") || strings.HasPrefix(path, "./") {
		return path
	}
	return "./" + path
}

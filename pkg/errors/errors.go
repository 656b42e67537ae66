// Unified error handling for the temperature tower post-processor
//
// Copyright (C) 2026  TempTower Go Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import (
	"fmt"
)

// ErrorCode represents the category of error
type ErrorCode string

const (
	// Configuration errors (fatal, no output produced)
	ErrConfigMissing    ErrorCode = "CONFIG_MISSING"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrConfigType       ErrorCode = "CONFIG_TYPE"

	// Source file errors (fatal, no output produced)
	ErrSourceNotFound ErrorCode = "SOURCE_NOT_FOUND"

	// Stream errors
	ErrGCodeParse ErrorCode = "GCODE_PARSE"
	ErrHeuristic  ErrorCode = "HEURISTIC"

	// I/O errors (fatal; partially written temp file is kept)
	ErrIORead  ErrorCode = "IO_READ"
	ErrIOWrite ErrorCode = "IO_WRITE"
)

// TowerError is the unified error type for the post-processor
type TowerError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Line is the 1-based source line number, if the error is tied to one
	Line int

	// Option is the configuration option name (if applicable)
	Option string

	// Err wraps the underlying error
	Err error
}

// Error implements the error interface
func (e *TowerError) Error() string {
	if e.Option != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Code, e.Option, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s", e.Code, e.Line, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *TowerError) Unwrap() error {
	return e.Err
}

// SetLine sets the source line number
func (e *TowerError) SetLine(line int) *TowerError {
	e.Line = line
	return e
}

// SetOption sets the configuration option
func (e *TowerError) SetOption(option string) *TowerError {
	e.Option = option
	return e
}

// New creates a new TowerError
func New(code ErrorCode, message string) *TowerError {
	return &TowerError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *TowerError {
	return &TowerError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Configuration errors

// ConfigMissingError creates an error for a required option that was not set
func ConfigMissingError(option string) *TowerError {
	return New(ErrConfigMissing, fmt.Sprintf("required setting '%s' is not set", option)).
		SetOption(option)
}

// ConfigValidationError creates an error for a setting that fails validation
func ConfigValidationError(option, reason string) *TowerError {
	return New(ErrConfigValidation, fmt.Sprintf("setting '%s': %s", option, reason)).
		SetOption(option)
}

// ConfigTypeError creates an error for a setting value of the wrong type
func ConfigTypeError(option, value, targetType string, err error) *TowerError {
	return Wrap(err, ErrConfigType, fmt.Sprintf("setting '%s': failed to parse '%s' as %s", option, value, targetType)).
		SetOption(option)
}

// Source errors

// SourceNotFoundError creates an error for a missing input file
func SourceNotFoundError(path, hint string) *TowerError {
	msg := fmt.Sprintf("source gcode '%s' does not exist", path)
	if hint != "" {
		msg += ". " + hint
	}
	return New(ErrSourceNotFound, msg)
}

// Stream errors

// ParseError creates an error for a value that could not be parsed
func ParseError(line int, token, reason string) *TowerError {
	return New(ErrGCodeParse, fmt.Sprintf("bad value '%s' (%s)", token, reason)).
		SetLine(line)
}

// I/O errors

// ReadError creates an error for a failed source read
func ReadError(path string, err error) *TowerError {
	return Wrap(err, ErrIORead, fmt.Sprintf("unable to read '%s'", path))
}

// WriteError creates an error for a failed output write
func WriteError(path string, err error) *TowerError {
	return Wrap(err, ErrIOWrite, fmt.Sprintf("unable to write '%s'", path))
}

// Is checks if error matches given error code
func Is(err error, code ErrorCode) bool {
	if towerErr, ok := err.(*TowerError); ok {
		return towerErr.Code == code
	}
	return false
}

// IsConfig checks if error is a configuration error
func IsConfig(err error) bool {
	return Is(err, ErrConfigMissing) ||
		Is(err, ErrConfigValidation) ||
		Is(err, ErrConfigType)
}

// IsFatal reports whether the error kind aborts a run, as opposed to the
// recovered parse/heuristic warnings which only reach the log channel.
func IsFatal(err error) bool {
	return IsConfig(err) ||
		Is(err, ErrSourceNotFound) ||
		Is(err, ErrIORead) ||
		Is(err, ErrIOWrite)
}

// Package diagnostics defines the coded errors reported by the matchgen
// pipeline and command line.
package diagnostics

import (
	"fmt"
	"strings"
)

// ErrorCode identifies the stage that produced a diagnostic
type ErrorCode string

const (
	ErrD001 ErrorCode = "D001" // definition could not be loaded
	ErrD002 ErrorCode = "D002" // decision tree could not be loaded
	ErrD003 ErrorCode = "D003" // decision tree violates its construction contract
	ErrD004 ErrorCode = "D004" // lowering failed
	ErrD005 ErrorCode = "D005" // output or cache failure
)

// DiagnosticError is an error attributed to a file and, for decision
// trees, to a node path inside it.
type DiagnosticError struct {
	Code    ErrorCode
	File    string
	Path    string
	Message string
	Err     error
}

// NewError creates a diagnostic for file with the given message.
func NewError(code ErrorCode, file string, message string) *DiagnosticError {
	return &DiagnosticError{Code: code, File: file, Message: message}
}

// Wrap creates a diagnostic whose message is taken from err.
func Wrap(code ErrorCode, file string, err error) *DiagnosticError {
	return &DiagnosticError{Code: code, File: file, Message: err.Error(), Err: err}
}

// At returns a copy of e attributed to the node path.
func (e *DiagnosticError) At(path string) *DiagnosticError {
	c := *e
	c.Path = path
	return &c
}

func (e *DiagnosticError) Error() string {
	var sb strings.Builder
	if e.File != "" {
		sb.WriteString(e.File)
		sb.WriteString(": ")
	}
	fmt.Fprintf(&sb, "[%s] ", e.Code)
	if e.Path != "" {
		sb.WriteString(e.Path)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	return sb.String()
}

func (e *DiagnosticError) Unwrap() error {
	return e.Err
}

// Package errors provides structured error handling for recon operations.
// It defines error codes and typed errors for the scan, parse, probe and
// configuration stages, plus helpers for inspecting them.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeCanceled      ErrorCode = "CANCELED"

	// Scan engine errors.
	CodeDependencyMissing ErrorCode = "DEPENDENCY_MISSING"
	CodeScanFailed        ErrorCode = "SCAN_FAILED"
	CodeTargetInvalid     ErrorCode = "TARGET_INVALID"

	// Report errors.
	CodeParse ErrorCode = "PARSE"

	// Probe errors.
	CodeHostUnreachable ErrorCode = "HOST_UNREACHABLE"
	CodeProbeFailed     ErrorCode = "PROBE_FAILED"

	// File system errors.
	CodeFileNotFound    ErrorCode = "FILE_NOT_FOUND"
	CodeFilePermission  ErrorCode = "FILE_PERMISSION"
	CodeDirectoryCreate ErrorCode = "DIRECTORY_CREATE"
)

// ScanError represents an error that occurred while running the scan engine.
type ScanError struct {
	Code    ErrorCode
	Message string
	Target  string
	Cause   error
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Target != "" {
		msg = fmt.Sprintf("%s (target: %s)", msg, e.Target)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// NewScanError creates a new scan error with the specified code and message.
func NewScanError(code ErrorCode, message string) *ScanError {
	return &ScanError{Code: code, Message: message}
}

// WrapScanError wraps an existing error as a scan error.
func WrapScanError(code ErrorCode, message string, err error) *ScanError {
	return &ScanError{Code: code, Message: message, Cause: err}
}

// WrapScanErrorWithTarget wraps an error with target information.
func WrapScanErrorWithTarget(code ErrorCode, message, target string, err error) *ScanError {
	return &ScanError{Code: code, Message: message, Target: target, Cause: err}
}

// ParseError represents a structured report that could not be turned into
// a service inventory. It is always fatal to a run.
type ParseError struct {
	Code    ErrorCode
	Message string
	Path    string
	Cause   error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Path != "" {
		msg = fmt.Sprintf("%s (file: %s)", msg, e.Path)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// NewParseError creates a parse error without an underlying cause.
func NewParseError(message string) *ParseError {
	return &ParseError{Code: CodeParse, Message: message}
}

// WrapParseError wraps an existing error as a parse error.
func WrapParseError(code ErrorCode, message string, err error) *ParseError {
	return &ParseError{Code: code, Message: message, Cause: err}
}

// WithPath records the report file the error refers to.
func (e *ParseError) WithPath(path string) *ParseError {
	e.Path = path
	return e
}

// ProbeError represents a failed follow-up probe against one service.
type ProbeError struct {
	Code    ErrorCode
	Message string
	Address string
	Cause   error
}

// Error implements the error interface.
func (e *ProbeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (address: %s): %v", e.Code, e.Message, e.Address, e.Cause)
	}
	return fmt.Sprintf("[%s] %s (address: %s)", e.Code, e.Message, e.Address)
}

// Unwrap returns the underlying error.
func (e *ProbeError) Unwrap() error {
	return e.Cause
}

// WrapProbeError wraps an existing error as a probe error for an address.
func WrapProbeError(code ErrorCode, message, address string, err error) *ProbeError {
	return &ProbeError{Code: code, Message: message, Address: address, Cause: err}
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Field:   field,
		Value:   value,
	}
}

// WrapConfigError wraps an existing error as a configuration error.
func WrapConfigError(code ErrorCode, message string, err error) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Utility functions for common error operations

// GetCode extracts the error code from the first coded error in the chain.
func GetCode(err error) ErrorCode {
	var scanErr *ScanError
	if stderrors.As(err, &scanErr) {
		return scanErr.Code
	}
	var parseErr *ParseError
	if stderrors.As(err, &parseErr) {
		return parseErr.Code
	}
	var probeErr *ProbeError
	if stderrors.As(err, &probeErr) {
		return probeErr.Code
	}
	var configErr *ConfigError
	if stderrors.As(err, &configErr) {
		return configErr.Code
	}
	return CodeUnknown
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	return GetCode(err) == code
}

// IsFatal determines if an error should stop the run.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case CodeDependencyMissing, CodeConfiguration, CodeValidation, CodeParse,
		CodeFileNotFound, CodeDirectoryCreate:
		return true
	default:
		return false
	}
}

// Common error creation functions

// ErrEngineMissing creates an error for a scan engine binary that cannot be found.
func ErrEngineMissing(binary string, err error) *ScanError {
	return WrapScanErrorWithTarget(CodeDependencyMissing, "scan engine is not installed", binary, err)
}

// ErrReportNotFound creates an error for a structured report that does not exist.
func ErrReportNotFound(path string, err error) *ParseError {
	return WrapParseError(CodeFileNotFound, "structured report not found", err).WithPath(path)
}


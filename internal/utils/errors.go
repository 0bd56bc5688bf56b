// Package contextutils provides error handling utilities and standardized error types
// for consistent error management across the miniapp maintenance tooling.
package contextutils

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a standardized error code attached to every tool error
type ErrorCode string

const (
	// Filesystem error codes

	// ErrorCodeFileNotFound indicates that an expected input file does not exist
	ErrorCodeFileNotFound ErrorCode = "FILE_NOT_FOUND"
	// ErrorCodeDirectoryNotFound indicates that an expected directory does not exist
	ErrorCodeDirectoryNotFound ErrorCode = "DIRECTORY_NOT_FOUND"
	// ErrorCodeFileRead indicates that a file could not be read
	ErrorCodeFileRead ErrorCode = "FILE_READ_ERROR"
	// ErrorCodeFileWrite indicates that a file could not be written
	ErrorCodeFileWrite ErrorCode = "FILE_WRITE_ERROR"

	// Input error codes

	// ErrorCodeInvalidJSON indicates that a manifest could not be parsed
	ErrorCodeInvalidJSON ErrorCode = "INVALID_JSON"
	// ErrorCodeInvalidInput indicates that the provided input is invalid
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrorCodeValidationFailed indicates that validation has failed
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrorCodeInvalidConfig indicates that the tool configuration is invalid
	ErrorCodeInvalidConfig ErrorCode = "INVALID_CONFIG"

	// Processing error codes

	// ErrorCodeMigrationFailed indicates that a source migration failed
	ErrorCodeMigrationFailed ErrorCode = "MIGRATION_FAILED"
	// ErrorCodePatternTimeout indicates that a pattern match exceeded its time budget
	ErrorCodePatternTimeout ErrorCode = "PATTERN_TIMEOUT"

	// Database error codes

	// ErrorCodeDatabaseConnection indicates a database connection error
	ErrorCodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION_ERROR"
	// ErrorCodeDatabaseQuery indicates a database query error
	ErrorCodeDatabaseQuery ErrorCode = "DATABASE_QUERY_ERROR"
	// ErrorCodeDatabaseMigration indicates a schema migration error
	ErrorCodeDatabaseMigration ErrorCode = "DATABASE_MIGRATION_ERROR"

	// ErrorCodeInternalError indicates an unexpected internal error
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// SeverityLevel represents the severity of an error for logging
type SeverityLevel string

const (
	// SeverityDebug indicates debug-level errors for development
	SeverityDebug SeverityLevel = "debug"
	// SeverityInfo indicates informational errors
	SeverityInfo SeverityLevel = "info"
	// SeverityWarn indicates warning-level errors
	SeverityWarn SeverityLevel = "warn"
	// SeverityError indicates error-level issues
	SeverityError SeverityLevel = "error"
	// SeverityFatal indicates fatal errors that abort the whole run
	SeverityFatal SeverityLevel = "fatal"
)

// AppError represents a structured error with code, severity, and context
type AppError struct {
	Code     ErrorCode
	Severity SeverityLevel
	Message  string
	Details  string
	Cause    error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison for errors.Is
func (e *AppError) Is(target error) bool {
	if appErr, ok := target.(*AppError); ok {
		return e.Code == appErr.Code
	}
	return false
}

// Error types for consistent error handling with associated codes and severity
var (
	// Filesystem errors
	ErrFileNotFound = &AppError{
		Code:     ErrorCodeFileNotFound,
		Severity: SeverityWarn,
		Message:  "File not found",
	}

	ErrDirectoryNotFound = &AppError{
		Code:     ErrorCodeDirectoryNotFound,
		Severity: SeverityWarn,
		Message:  "Directory not found",
	}

	ErrFileRead = &AppError{
		Code:     ErrorCodeFileRead,
		Severity: SeverityError,
		Message:  "File read failed",
	}

	ErrFileWrite = &AppError{
		Code:     ErrorCodeFileWrite,
		Severity: SeverityError,
		Message:  "File write failed",
	}

	// Input errors
	ErrInvalidJSON = &AppError{
		Code:     ErrorCodeInvalidJSON,
		Severity: SeverityError,
		Message:  "Invalid JSON",
	}

	ErrInvalidInput = &AppError{
		Code:     ErrorCodeInvalidInput,
		Severity: SeverityWarn,
		Message:  "Invalid input",
	}

	ErrValidationFailed = &AppError{
		Code:     ErrorCodeValidationFailed,
		Severity: SeverityWarn,
		Message:  "Validation failed",
	}

	ErrInvalidConfig = &AppError{
		Code:     ErrorCodeInvalidConfig,
		Severity: SeverityFatal,
		Message:  "Invalid configuration",
	}

	// Processing errors
	ErrMigrationFailed = &AppError{
		Code:     ErrorCodeMigrationFailed,
		Severity: SeverityError,
		Message:  "Migration failed",
	}

	ErrPatternTimeout = &AppError{
		Code:     ErrorCodePatternTimeout,
		Severity: SeverityError,
		Message:  "Pattern match timed out",
	}

	// Database errors
	ErrDatabaseConnection = &AppError{
		Code:     ErrorCodeDatabaseConnection,
		Severity: SeverityError,
		Message:  "Database connection failed",
	}

	ErrDatabaseQuery = &AppError{
		Code:     ErrorCodeDatabaseQuery,
		Severity: SeverityError,
		Message:  "Database query failed",
	}

	ErrDatabaseMigration = &AppError{
		Code:     ErrorCodeDatabaseMigration,
		Severity: SeverityError,
		Message:  "Database migration failed",
	}

	ErrInternalError = &AppError{
		Code:     ErrorCodeInternalError,
		Severity: SeverityError,
		Message:  "Internal error",
	}
)

// NewAppError creates a new AppError with the specified code, severity, message and details
func NewAppError(code ErrorCode, severity SeverityLevel, message, details string) *AppError {
	return &AppError{
		Code:     code,
		Severity: severity,
		Message:  message,
		Details:  details,
	}
}

// WrapError wraps an error with additional context, preserving AppError structure if possible
func WrapError(err error, context string) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Code:     appErr.Code,
			Severity: appErr.Severity,
			Message:  context,
			Details:  err.Error(),
			Cause:    err,
		}
	}

	return &AppError{
		Code:     ErrorCodeInternalError,
		Severity: SeverityError,
		Message:  context,
		Details:  err.Error(),
		Cause:    err,
	}
}

// WrapErrorf wraps an error with formatted context, preserving AppError structure if possible
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	// Let fmt handle %w so the chain stays inspectable
	if strings.Contains(format, "%w") {
		wrappedErr := fmt.Errorf(format, args...)

		var appErr *AppError
		if errors.As(err, &appErr) {
			return &AppError{
				Code:     appErr.Code,
				Severity: appErr.Severity,
				Message:  wrappedErr.Error(),
				Details:  appErr.Error(),
				Cause:    wrappedErr,
			}
		}

		return &AppError{
			Code:     ErrorCodeInternalError,
			Severity: SeverityError,
			Message:  wrappedErr.Error(),
			Details:  err.Error(),
			Cause:    wrappedErr,
		}
	}

	return WrapError(err, fmt.Sprintf(format, args...))
}

// NewCodedErrorf builds an AppError carrying the code and severity of kind
// with a formatted message and an optional cause.
func NewCodedErrorf(kind *AppError, cause error, format string, args ...interface{}) error {
	appErr := &AppError{
		Code:     kind.Code,
		Severity: kind.Severity,
		Message:  fmt.Sprintf(format, args...),
		Cause:    cause,
	}
	if cause != nil {
		appErr.Details = cause.Error()
	}
	return appErr
}

// ErrorWithContextf creates a new error with formatted context
func ErrorWithContextf(format string, args ...interface{}) error {
	return &AppError{
		Code:     ErrorCodeInternalError,
		Severity: SeverityError,
		Message:  fmt.Sprintf(format, args...),
	}
}

// IsError checks if an error (or anything it wraps) matches a specific AppError type
func IsError(err error, target *AppError) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == target.Code
	}
	return false
}

// GetErrorSeverity returns the severity level from an error if it's an AppError, otherwise returns error
func GetErrorSeverity(err error) SeverityLevel {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Severity
	}
	return SeverityError
}

// ToFields converts an AppError into structured log fields
func (e *AppError) ToFields() map[string]interface{} {
	result := map[string]interface{}{
		"code":     string(e.Code),
		"message":  e.Message,
		"severity": string(e.Severity),
	}

	if e.Details != "" {
		result["details"] = e.Details
	}

	if e.Cause != nil {
		switch e.Severity {
		case SeverityError, SeverityFatal:
			result["cause"] = e.Cause.Error()
		}
	}

	return result
}

// ContextKey represents a context key type for passing values through context
type ContextKey string

const (
	// RunIDKey is used to store the batch run id in context
	RunIDKey ContextKey = "runID"
	// AppIDKey is used to store the miniapp currently being processed
	AppIDKey ContextKey = "appID"
)

// GetRunIDFromContext extracts the run id from context, returning "" if not found
func GetRunIDFromContext(ctx context.Context) string {
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		return runID
	}
	return ""
}

// WithRunID returns a new context with the run id set
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// GetAppIDFromContext extracts the miniapp id from context, returning "" if not found
func GetAppIDFromContext(ctx context.Context) string {
	if appID, ok := ctx.Value(AppIDKey).(string); ok {
		return appID
	}
	return ""
}

// WithAppID returns a new context with the miniapp id set
func WithAppID(ctx context.Context, appID string) context.Context {
	return context.WithValue(ctx, AppIDKey, appID)
}

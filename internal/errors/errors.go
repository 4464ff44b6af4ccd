package errors

import (
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// IndexMissing indicates the project has no index database yet
	IndexMissing ErrorCode = "INDEX_MISSING"
	// ConfigInvalid indicates configuration failed validation
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// FileNotIndexed indicates a queried file is not in the index
	FileNotIndexed ErrorCode = "FILE_NOT_INDEXED"
	// ParseDegraded indicates a file could not be parsed
	ParseDegraded ErrorCode = "PARSE_DEGRADED"
	// OracleUnavailable indicates the consequence predictor failed
	OracleUnavailable ErrorCode = "ORACLE_UNAVAILABLE"
	// StorageFailure indicates a database operation failed
	StorageFailure ErrorCode = "STORAGE_FAILURE"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// OpenDocs suggests opening documentation
	OpenDocs FixActionType = "open-docs"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
}

// PydexError represents a pydex error with code, message, and suggestions
type PydexError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates a new PydexError
func New(code ErrorCode, message string, cause error) *PydexError {
	return &PydexError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Error implements the error interface
func (e *PydexError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *PydexError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *PydexError) WithDetails(details interface{}) *PydexError {
	e.Details = details
	return e
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	IndexMissing: {
		{
			Type:        RunCommand,
			Command:     "pydex refresh",
			Safe:        true,
			Description: "Build the index for this project",
		},
	},
	FileNotIndexed: {
		{
			Type:        RunCommand,
			Command:     "pydex refresh",
			Safe:        true,
			Description: "Refresh the index so new files are picked up",
		},
	},
	ParseDegraded: {
		{
			Type:        RunCommand,
			Command:     "pydex stats --format json",
			Safe:        true,
			Description: "List files with parse errors",
		},
	},
	ConfigInvalid: {
		{
			Type:        RunCommand,
			Command:     "pydex init --force",
			Safe:        false,
			Description: "Rewrite the default configuration",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}

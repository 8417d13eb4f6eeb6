// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// API responses carry the code so operators can find the technical error in
// the logs.
//
// Error codes are grouped by category:
//
// # Input Errors (FMT001-FMT099)
//
//	FMT001 - Unsupported format: File is not CSV, JSON or Markdown
//	         Action: Export the metadata as .csv, .txt, .json or .md
//	         Patterns: "unsupported format"
//
//	FMT002 - Encoding error: File is not UTF-8, Latin-1 or Windows-1252 text
//	         Action: Re-export the file as UTF-8
//	         Patterns: "encoding error"
//
//	FMT003 - No header: No header row was found
//	         Action: Check that the file starts with a header row
//	         Patterns: "no header found"
//
//	FMT004 - Unknown kind: Columns match neither documents nor files
//	         Action: Check the column names against the export layout
//	         Patterns: "unknown record kind"
//
//	FMT005 - No file: No file was provided
//	         Action: Attach the export as the "file" form field
//	         Patterns: "no file provided"
//
//	FMT006 - File too large: File exceeds the upload limit
//	         Action: Split the export into smaller files
//	         Patterns: "file too large"
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Connection refused: Unable to connect to database
//	DB002 - Connection reset: Database connection was interrupted
//	DB003 - Locked: Database is busy (SQLite)
//	DB004 - Deadlock: Database was busy with conflicting operations
//	DB005 - Foreign key: Referenced record does not exist
//	DB006 - Timeout: Operation timed out
//
// # Job Errors (JOB001-JOB099)
//
//	JOB001 - System busy: Too many imports in progress
//	JOB002 - Job not found: Import job id is unknown or expired
//	JOB003 - Job crashed: Import stopped on an internal error
//	JOB004 - Request cancelled
//	JOB005 - Request timeout
//
// # Restore Errors (RST001-RST099)
//
//	RST001 - Empty selection: No file ids were given
//	RST002 - No destination: Neither the request nor the settings name one
//	RST003 - Object store disabled: s3:// destination without S3 settings
//	RST004 - Unsupported export format
//	RST005 - Unknown setting
//	RST006 - Invalid setting value
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Malformed request: Bad parameter or body
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited: Too many requests
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches:
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns should be
// defined before general ones.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so order matters.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Input Errors (FMT001-FMT006)
	// =========================================================================
	{
		pattern: "unsupported format",
		msg: UserMessage{
			Message: "File format is not supported",
			Action:  "Export the metadata as .csv, .txt, .json or .md",
			Code:    "FMT001",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File contains characters that could not be decoded",
			Action:  "Re-export the file as UTF-8",
			Code:    "FMT002",
		},
	},
	{
		pattern: "no header found",
		msg: UserMessage{
			Message: "No header row was found",
			Action:  "Check that the file starts with a header row",
			Code:    "FMT003",
		},
	},
	{
		pattern: "unknown record kind",
		msg: UserMessage{
			Message: "Columns match neither the document nor the file layout",
			Action:  "Check the column names against the export layout",
			Code:    "FMT004",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was provided",
			Action:  "Attach the export as the \"file\" form field",
			Code:    "FMT005",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the upload limit",
			Action:  "Split the export into smaller files",
			Code:    "FMT006",
		},
	},

	// =========================================================================
	// Database Errors (DB001-DB006)
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB002",
		},
	},
	{
		pattern: "database is locked",
		msg: UserMessage{
			Message: "Database is busy",
			Action:  "Please try again",
			Code:    "DB003",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB004",
		},
	},
	{
		pattern: "foreign key",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Import documents before files that reference them",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller batch size or try again later",
			Code:    "DB006",
		},
	},

	// =========================================================================
	// Job Errors (JOB001-JOB005)
	// =========================================================================
	{
		pattern: "too many concurrent imports",
		msg: UserMessage{
			Message: "System is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "JOB001",
		},
	},
	{
		pattern: "job not found",
		msg: UserMessage{
			Message: "Import job not found",
			Action:  "Jobs are kept until the server restarts. Start a new import",
			Code:    "JOB002",
		},
	},
	{
		pattern: "import panicked",
		msg: UserMessage{
			Message: "Import stopped on an internal error",
			Action:  "Check the server logs for the job id",
			Code:    "JOB003",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "JOB004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Use an asynchronous import for large files",
			Code:    "JOB005",
		},
	},

	// =========================================================================
	// Restore Errors (RST001-RST006)
	// =========================================================================
	{
		pattern: "no files selected",
		msg: UserMessage{
			Message: "No files were selected",
			Action:  "Pass at least one file id",
			Code:    "RST001",
		},
	},
	{
		pattern: "no restore destination",
		msg: UserMessage{
			Message: "No restore destination was given",
			Action:  "Pass a destination or set default_destination",
			Code:    "RST002",
		},
	},
	{
		pattern: "storage is not configured",
		msg: UserMessage{
			Message: "Object store destinations are not enabled",
			Action:  "Configure S3_ENDPOINT and credentials or restore to a directory",
			Code:    "RST003",
		},
	},
	{
		pattern: "unsupported export format",
		msg: UserMessage{
			Message: "Export format is not supported",
			Action:  "Use format=csv or format=json",
			Code:    "RST004",
		},
	},
	{
		pattern: "unknown setting",
		msg: UserMessage{
			Message: "Setting does not exist",
			Action:  "Use one of vault_root, use_hex_padding, add_fv_extension, default_destination",
			Code:    "RST005",
		},
	},

	{
		pattern: "invalid setting value",
		msg: UserMessage{
			Message: "Setting value is not valid",
			Action:  "Use true or false for use_hex_padding and add_fv_extension",
			Code:    "RST006",
		},
	},

	// =========================================================================
	// Request Errors (REQ001)
	// =========================================================================
	{
		pattern: "invalid request",
		msg: UserMessage{
			Message: "Request is malformed",
			Action:  "Check the request parameters and body",
			Code:    "REQ001",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing checks if an error matches a known pattern and should be shown to users.
// Returns true if the error matches a specific pattern (not the generic ERR000 fallback).
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	msg := MapError(err)
	return msg.Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message. Error returns the
// user message; Unwrap returns the technical error.
type UserError struct {
	UserMessage
	Err error
}

// NewUserError wraps err, or returns nil for a nil err.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{UserMessage: MapError(err), Err: err}
}

func (e *UserError) Error() string { return e.Message }

func (e *UserError) Unwrap() error { return e.Err }

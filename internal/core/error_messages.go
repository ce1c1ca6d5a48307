// Error codes for classification, relocation and run failures.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// Rejected files carry the code in the classification audit table and the
// HTTP API, so operators can quote it when asking why a file was rejected.
//
// Error codes are grouped by category:
//
// # Schema Errors (SCH001-SCH099)
//
// Errors raised while loading schema definitions. These abort a run before
// any file is touched:
//
//	SCH001 - Schema directory missing: The schema directory does not exist
//	         Action: Check DROPZONE_SCHEMA_DIR or the -schemas flag
//	         Sentinel: schema.ErrSchemaDirNotFound
//
//	SCH002 - Invalid schema: A schema definition is malformed or incomplete
//	         Action: Fix the definition named in the log and rerun
//	         Sentinel: schema.ErrInvalidSchema
//
// # File Errors (FILE001-FILE099)
//
// Errors raised while probing one file. The file is moved to rejected:
//
//	FILE001 - File not found: The file disappeared before it was read
//	          Action: Check whether another process moved it
//	          Sentinel: ErrFileNotFound
//
//	FILE002 - Unsupported format: Only .csv, .xlsx and .xls are classified
//	          Action: Export the file as CSV or XLSX and drop it again
//	          Sentinel: ErrUnsupportedFormat
//
//	FILE003 - Encoding error: File is not valid UTF-8
//	          Action: Save file as UTF-8 encoding
//	          Sentinel: ErrInvalidEncoding
//
//	FILE004 - Invalid CSV: File could not be parsed as CSV
//	          Action: Ensure quotes are balanced and the file is comma-separated
//	          Sentinel: ErrMalformedCSV (field or record size limit)
//	          Patterns: "malformed csv", "read csv"
//
//	FILE005 - Unreadable workbook: Spreadsheet could not be opened
//	          Action: Re-save the workbook as .xlsx
//	          Patterns: "workbook", "zip: not a valid zip file"
//
//	FILE006 - Probe timeout: Reading the file took too long
//	          Action: Check the file size and storage latency, then requeue
//	          Sentinel: ErrFileTimeout
//
// # Move Errors (MOVE001-MOVE099)
//
// Errors raised while relocating a file:
//
//	MOVE001 - Permission denied: The file could not be moved
//	          Action: Check permissions on the storage root
//	          Patterns: "permission denied"
//
//	MOVE002 - Disk full: No space left on the destination device
//	          Action: Free space under the storage root and requeue
//	          Patterns: "no space left"
//
//	MOVE003 - Directory error: Destination directory could not be created
//	          Action: Check that the storage root is writable
//	          Patterns: "create destination directory"
//
//	MOVE004 - Move failed: The file could not be moved
//	          Action: Check the application logs for the target path
//	          Patterns: "move ", "copy "
//
// # Run Errors (RUN001-RUN099)
//
// Errors related to batch runs:
//
//	RUN001 - Run in progress: Another classification run is active
//	         Action: Wait for the current run to finish
//	         Sentinel: ErrRunInProgress
//
//	RUN002 - Run cancelled: The run was cancelled
//	         Action: Start a new run; unprocessed files stay in incoming
//	         Patterns: "context canceled"
//
//	RUN003 - Run timeout: The run exceeded its deadline
//	         Action: Start a new run; unprocessed files stay in incoming
//	         Patterns: "context deadline exceeded"
//
//	RUN004 - Requeue conflict: A file with the same name is already in incoming
//	         Action: Remove or rename the incoming file first
//	         Sentinel: ErrRequeueConflict (internal/admin)
//	         Patterns: "already in incoming"
//
// # Database Errors (DB001-DB099)
//
// Errors from the optional audit sink. They never change file outcomes:
//
//	DB001 - Connection refused: Unable to connect to database
//	        Action: Please try again in a few moments
//	        Patterns: "connection refused"
//
//	DB002 - Connection reset: Database connection was interrupted
//	        Action: Please try again
//	        Patterns: "connection reset"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited: Too many requests
//	          Action: Please wait a moment before trying again
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no sentinel or pattern matches:
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// # Matching
//
// Sentinels are checked first with errors.Is. Otherwise patterns are matched
// case-insensitively using strings.Contains, and the first match wins.

package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/dropzone/internal/schema"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorSentinel maps a sentinel error to its message.
type errorSentinel struct {
	target error
	msg    UserMessage
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgSchemaDir = UserMessage{
		Message: "The schema directory does not exist",
		Action:  "Check DROPZONE_SCHEMA_DIR or the -schemas flag",
		Code:    "SCH001",
	}
	msgInvalidSchema = UserMessage{
		Message: "A schema definition is malformed or incomplete",
		Action:  "Fix the definition named in the log and rerun",
		Code:    "SCH002",
	}
	msgFileNotFound = UserMessage{
		Message: "The file disappeared before it was read",
		Action:  "Check whether another process moved it",
		Code:    "FILE001",
	}
	msgUnsupported = UserMessage{
		Message: "Only .csv, .xlsx and .xls files are classified",
		Action:  "Export the file as CSV or XLSX and drop it again",
		Code:    "FILE002",
	}
	msgEncoding = UserMessage{
		Message: "File is not valid UTF-8",
		Action:  "Save file as UTF-8 encoding",
		Code:    "FILE003",
	}
	msgFileTimeout = UserMessage{
		Message: "Reading the file took too long",
		Action:  "Check the file size and storage latency, then requeue",
		Code:    "FILE006",
	}
	msgInvalidCSV = UserMessage{
		Message: "File could not be parsed as CSV",
		Action:  "Ensure quotes are balanced and the file is comma-separated",
		Code:    "FILE004",
	}
	msgRunInProgress = UserMessage{
		Message: "Another classification run is active",
		Action:  "Wait for the current run to finish",
		Code:    "RUN001",
	}
	msgMoveFailed = UserMessage{
		Message: "The file could not be moved",
		Action:  "Check the application logs for the target path",
		Code:    "MOVE004",
	}
)

// errorSentinels is checked before errorPatterns.
var errorSentinels = []errorSentinel{
	{target: schema.ErrSchemaDirNotFound, msg: msgSchemaDir},
	{target: schema.ErrInvalidSchema, msg: msgInvalidSchema},
	{target: ErrFileTimeout, msg: msgFileTimeout},
	{target: ErrFileNotFound, msg: msgFileNotFound},
	{target: ErrUnsupportedFormat, msg: msgUnsupported},
	{target: ErrInvalidEncoding, msg: msgEncoding},
	{target: ErrMalformedCSV, msg: msgInvalidCSV},
	{target: ErrRunInProgress, msg: msgRunInProgress},
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so more specific patterns come first.
// Sentinel messages are repeated here so a reason that was stored as text
// maps to the same code as the original error.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Schema and file errors, by message text
	// =========================================================================
	{pattern: "schema directory does not exist", msg: msgSchemaDir},
	{pattern: "invalid schema definition", msg: msgInvalidSchema},
	{pattern: "probe timed out", msg: msgFileTimeout},
	{pattern: "file does not exist", msg: msgFileNotFound},
	{pattern: "unsupported file extension", msg: msgUnsupported},
	{pattern: "invalid utf-8", msg: msgEncoding},
	{pattern: "malformed csv", msg: msgInvalidCSV},
	{pattern: "read csv", msg: msgInvalidCSV},
	{
		pattern: "workbook",
		msg: UserMessage{
			Message: "Spreadsheet could not be opened",
			Action:  "Re-save the workbook as .xlsx",
			Code:    "FILE005",
		},
	},
	{
		pattern: "zip: not a valid zip file",
		msg: UserMessage{
			Message: "Spreadsheet could not be opened",
			Action:  "Re-save the workbook as .xlsx",
			Code:    "FILE005",
		},
	},

	// =========================================================================
	// Move Errors (MOVE001-MOVE004)
	// =========================================================================
	{
		pattern: "permission denied",
		msg: UserMessage{
			Message: "Permission denied while moving the file",
			Action:  "Check permissions on the storage root",
			Code:    "MOVE001",
		},
	},
	{
		pattern: "no space left",
		msg: UserMessage{
			Message: "No space left on the destination device",
			Action:  "Free space under the storage root and requeue",
			Code:    "MOVE002",
		},
	},
	{
		pattern: "create destination directory",
		msg: UserMessage{
			Message: "Destination directory could not be created",
			Action:  "Check that the storage root is writable",
			Code:    "MOVE003",
		},
	},
	{pattern: "move ", msg: msgMoveFailed},
	{pattern: "copy ", msg: msgMoveFailed},

	// =========================================================================
	// Run Errors (RUN001-RUN004)
	// =========================================================================
	{pattern: "classification run already in progress", msg: msgRunInProgress},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "The run was cancelled",
			Action:  "Start a new run; unprocessed files stay in incoming",
			Code:    "RUN002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The run exceeded its deadline",
			Action:  "Start a new run; unprocessed files stay in incoming",
			Code:    "RUN003",
		},
	},
	{
		pattern: "already in incoming",
		msg: UserMessage{
			Message: "A file with the same name is already in incoming",
			Action:  "Remove or rename the incoming file first",
			Code:    "RUN004",
		},
	},

	// =========================================================================
	// Database Errors (DB001-DB002)
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

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	_, err := prober.Probe(ctx, "notes.txt")
//	msg := MapError(err)
//	// msg.Code == "FILE002"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, es := range errorSentinels {
		if errors.Is(err, es.target) {
			return es.msg
		}
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

// IsUserFacing reports whether err maps to a specific code rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}

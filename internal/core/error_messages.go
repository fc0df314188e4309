package core

// error_messages.go maps technical errors to user-facing messages.
//
// # Error Codes Reference
//
// When users encounter errors, they can quote the code to support staff for
// faster diagnosis. Codes are grouped by category:
//
// # Extraction Errors (EXT001-EXT099)
//
//	EXT001 - Depth column not found
//	         Action: Add a "Depth" header above the depth column
//	         Patterns: "depth-detection-failed"
//
//	EXT002 - Unsupported file type
//	         Action: Upload an .xlsx or .csv file
//	         Patterns: "unsupported-format"
//
//	EXT003 - File is damaged
//	         Action: Re-export the file and try again
//	         Patterns: "file-corrupted"
//
//	EXT004 - No usable rows
//	         Action: Make sure the sheet has rows with numeric depths
//	         Patterns: "insufficient-data"
//
//	EXT005 - Record failed schema validation
//	         Action: Contact support with the error code
//	         Patterns: "schema-validation-failed"
//
//	EXT006 - System busy
//	         Action: Please wait a moment and try again
//	         Patterns: "too many extractions"
//
// # Review Errors (REV001-REV099)
//
//	REV001 - Review already finished
//	         Patterns: "review session closed"
//	REV002 - Review acknowledgement required
//	         Patterns: "review required"
//	REV003 - Edit rejected
//	         Patterns: "invalid edit"
//	REV004 - Layers failed validation
//	         Patterns: "layer validation failed"
//	REV005 - Review session not found
//	         Patterns: "session not found"
//	REV006 - Internal consistency failure
//	         Patterns: "internal consistency"
//
// # Save Errors (SAV001-SAV099)
//
//	SAV001 - Duplicate record
//	         Patterns: "duplicate key", "unique constraint"
//	SAV002 - Storage unreachable
//	         Patterns: "connection refused", "connection reset"
//	SAV003 - Storage timeout
//	         Patterns: "timeout"
//	SAV004 - Storage write failed
//	         Patterns: "store record"
//	SAV005 - Record not found
//	         Patterns: "record not found"
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - File too large       Patterns: "file too large"
//	UPL002 - No file              Patterns: "no file provided"
//	UPL003 - Empty file           Patterns: "empty file"
//	UPL004 - Encoding error       Patterns: "encoding error"
//	UPL005 - Request cancelled    Patterns: "context canceled"
//	UPL006 - Request timeout      Patterns: "context deadline exceeded"
//	UPL007 - Invalid request      Patterns: "invalid request"
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests   Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches. Check application logs for the original
// technical error.
//
// # Pattern Matching
//
// Patterns are matched case-insensitively using strings.Contains. The first
// matching pattern wins, so specific patterns come before general ones.

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
	// Extraction Errors (EXT001-EXT006)
	// =========================================================================
	{
		pattern: string(KindDepthDetectionFailed),
		msg: UserMessage{
			Message: "No depth column could be found",
			Action:  "Add a header such as \"Depth\" or \"From\" above the depth column",
			Code:    "EXT001",
		},
	},
	{
		pattern: string(KindUnsupportedFormat),
		msg: UserMessage{
			Message: "This file type is not supported",
			Action:  "Upload an .xlsx or .csv file",
			Code:    "EXT002",
		},
	},
	{
		pattern: string(KindFileCorrupted),
		msg: UserMessage{
			Message: "The file appears to be damaged",
			Action:  "Re-export the file from the source application and try again",
			Code:    "EXT003",
		},
	},
	{
		pattern: string(KindInsufficientData),
		msg: UserMessage{
			Message: "The file has no usable strata rows",
			Action:  "Make sure the sheet has rows with numeric depths",
			Code:    "EXT004",
		},
	},
	{
		pattern: string(KindSchemaValidationFailed),
		msg: UserMessage{
			Message: "The record did not pass schema validation",
			Action:  "Please contact support with this code",
			Code:    "EXT005",
		},
	},
	{
		pattern: "too many extractions",
		msg: UserMessage{
			Message: "System is busy processing other files",
			Action:  "Please wait a moment and try again",
			Code:    "EXT006",
		},
	},

	// =========================================================================
	// Review Errors (REV001-REV006)
	// =========================================================================
	{
		pattern: "review session closed",
		msg: UserMessage{
			Message: "This review has already been saved or cancelled",
			Action:  "Start a new extraction",
			Code:    "REV001",
		},
	},
	{
		pattern: "review required",
		msg: UserMessage{
			Message: "This extraction has flagged issues that need review",
			Action:  "Review the flagged layers and acknowledge them before saving",
			Code:    "REV002",
		},
	},
	{
		pattern: "invalid edit",
		msg: UserMessage{
			Message: "That change could not be applied",
			Action:  "Check the layer index and depths and try again",
			Code:    "REV003",
		},
	},
	{
		pattern: "layer validation failed",
		msg: UserMessage{
			Message: "Some layers are invalid",
			Action:  "Fix the listed layers before saving",
			Code:    "REV004",
		},
	},
	{
		pattern: "session not found",
		msg: UserMessage{
			Message: "Review session not found",
			Action:  "The review may have expired. Please extract the file again",
			Code:    "REV005",
		},
	},
	{
		pattern: "internal consistency",
		msg: UserMessage{
			Message: "The extraction could not be checked safely",
			Action:  "Please contact support with this code",
			Code:    "REV006",
		},
	},

	// =========================================================================
	// Save Errors (SAV001-SAV004)
	// =========================================================================
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Please try saving again",
			Code:    "SAV001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Please try saving again",
			Code:    "SAV001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to storage",
			Action:  "Please try again in a few moments",
			Code:    "SAV002",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Storage connection was interrupted",
			Action:  "Please try again",
			Code:    "SAV002",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "SAV003",
		},
	},
	{
		pattern: "store record",
		msg: UserMessage{
			Message: "The record could not be saved",
			Action:  "Your edits are kept. Please try saving again",
			Code:    "SAV004",
		},
	},
	{
		pattern: "record not found",
		msg: UserMessage{
			Message: "No saved bore record has that ID",
			Action:  "Check the record ID and try again",
			Code:    "SAV005",
		},
	},

	// =========================================================================
	// Upload Errors (UPL001-UPL007)
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Remove unused sheets or split the file",
			Code:    "UPL001",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a spreadsheet to upload",
			Code:    "UPL002",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a file with data rows",
			Code:    "UPL003",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File contains invalid characters",
			Action:  "Save file as UTF-8 encoding",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL005",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "UPL006",
		},
	},
	{
		pattern: "invalid request",
		msg: UserMessage{
			Message: "Some request fields are missing or invalid",
			Action:  "Check the form values and try again",
			Code:    "UPL007",
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
// the first match. If no pattern matches, ERR000 is returned.
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

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
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

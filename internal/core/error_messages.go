package core

// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When users encounter errors, they can quote the error code to support staff
// for faster diagnosis.
//
// Errors are classified by sentinel first (errors.Is / errors.As), then by
// text pattern for errors from libraries that carry no sentinel.
//
// # Spreadsheet Errors (SHEET001-SHEET099)
//
//	SHEET001 - Sheet unreachable: The spreadsheet service could not be reached
//	           Action: Check your connection and try again
//	           Sentinel: ErrConnectivity
//
//	SHEET002 - Header mismatch: The worksheet columns do not match the catalog layout
//	           Action: Restore the expected column headers in the sheet
//	           Type: *HeaderMismatchError
//
//	SHEET003 - Load failed: The sheet could not be loaded
//	           Action: Check the sheet contents and load again
//	           Sentinel: ErrLoad
//
//	SHEET004 - Stale row: A row was changed in the sheet after it was loaded
//	           Action: Reload the sheet and reapply the edit
//	           Sentinel: ErrStaleRow
//
//	SHEET005 - Partial commit: Some changes were not saved
//	           Action: Review the failed items and commit again
//	           Sentinel: ErrPartialCommit
//
//	SHEET006 - Not loaded: No sheet has been loaded yet
//	           Action: Load a sheet first
//	           Sentinel: ErrNotLoaded
//
//	SHEET007 - Bad sheet reference: The URL or worksheet number does not address a sheet
//	           Action: Paste the full spreadsheet URL and check the worksheet number
//	           Pattern: "invalid spreadsheet reference", checked before ErrLoad
//
// # Authorization Errors (AUTH001-AUTH099)
//
//	AUTH001 - Access denied: Credentials were rejected
//	          Action: Check the service account or API key and sharing settings
//	          Sentinel: ErrAuth
//
//	AUTH002 - Missing API key (answered by the web middleware)
//	          Action: Send the key in the X-API-Key header
//
//	AUTH003 - Rejected API key (answered by the web middleware)
//	          Action: Check the key and try again
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid record: One or more fields are invalid
//	         Action: Fix the highlighted fields and try again
//	         Sentinel: ErrValidation
//
//	VAL002 - Invalid price: A price is not a number
//	         Action: Use a plain decimal such as 19.99
//	         Patterns: "not a number"
//
// # Record Errors (REC001-REC099)
//
//	REC001 - Not found: The product no longer exists in this session
//	         Action: Reload the sheet
//	         Sentinel: ErrNotFound
//
// # Generation Errors (GEN001-GEN099)
//
//	GEN001 - Quota exceeded: The text generation quota is used up
//	         Action: Wait before generating again or raise the quota
//	         Sentinel: ErrQuotaExceeded
//
//	GEN002 - Generation timed out
//	         Action: Try again with a shorter request
//	         Sentinel: ErrTimeout
//
//	GEN003 - Generator busy: Too many generation requests in progress
//	         Action: Please wait a moment and try again
//	         Patterns: "too many generation requests"
//
//	GEN004 - Unusable output: The generated product could not be read
//	         Action: Try generating again
//	         Patterns: "generated output"
//
//	GEN005 - Generation off: No text generation provider is configured
//	         Action: Set TEXTGEN_PROVIDER and the provider's API key
//	         Patterns: "generation is not configured"
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Request cancelled
//	         Action: Please try again
//	         Sentinel: context.Canceled
//
//	REQ002 - Request timed out
//	         Action: Please try again
//	         Sentinel: context.DeadlineExceeded
//
//	REQ003 - Malformed request: The request body or parameters could not be read
//	         Action: Check the request and try again
//	         Patterns: "malformed request"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited: Too many requests
//	          Action: Please wait a moment before trying again
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// # For Support Staff
//
// When a user reports an error code:
//  1. Look up the code in this reference
//  2. Check the sentinel or pattern to understand what triggered it
//  3. Review the suggested action to guide the user
//  4. If ERR000, check application logs for the original technical error

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorClass maps an error category to its user message.
type errorClass struct {
	match func(error) bool
	msg   UserMessage
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

// errorClasses is checked in order. Auth and connectivity come before the
// generic load failure because a LoadError carries its cause.
var errorClasses = []errorClass{
	{
		match: is(ErrPartialCommit),
		msg: UserMessage{
			Message: "Some changes were not saved",
			Action:  "Review the failed items and commit again",
			Code:    "SHEET005",
		},
	},
	{
		match: is(ErrAuth),
		msg: UserMessage{
			Message: "Access was denied",
			Action:  "Check the service account or API key and the sheet's sharing settings",
			Code:    "AUTH001",
		},
	},
	{
		match: is(ErrQuotaExceeded),
		msg: UserMessage{
			Message: "The text generation quota is used up",
			Action:  "Wait before generating again or raise the quota",
			Code:    "GEN001",
		},
	},
	{
		match: is(ErrTimeout),
		msg: UserMessage{
			Message: "Text generation timed out",
			Action:  "Try again with a shorter request",
			Code:    "GEN002",
		},
	},
	{
		match: is(context.DeadlineExceeded),
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Please try again",
			Code:    "REQ002",
		},
	},
	{
		match: is(context.Canceled),
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ001",
		},
	},
	{
		match: is(ErrConnectivity),
		msg: UserMessage{
			Message: "The spreadsheet service could not be reached",
			Action:  "Check your connection and try again",
			Code:    "SHEET001",
		},
	},
	{
		match: func(err error) bool {
			var hm *HeaderMismatchError
			return errors.As(err, &hm)
		},
		msg: UserMessage{
			Message: "The worksheet columns do not match the catalog layout",
			Action:  "Restore the expected column headers in the sheet",
			Code:    "SHEET002",
		},
	},
	{
		match: is(ErrStaleRow),
		msg: UserMessage{
			Message: "A row was changed in the sheet after it was loaded",
			Action:  "Reload the sheet and reapply the edit",
			Code:    "SHEET004",
		},
	},
	{
		match: is(ErrValidation),
		msg: UserMessage{
			Message: "One or more fields are invalid",
			Action:  "Fix the highlighted fields and try again",
			Code:    "VAL001",
		},
	},
	{
		match: is(ErrNotFound),
		msg: UserMessage{
			Message: "The product no longer exists in this session",
			Action:  "Reload the sheet",
			Code:    "REC001",
		},
	},
	{
		match: is(ErrNotLoaded),
		msg: UserMessage{
			Message: "No sheet has been loaded yet",
			Action:  "Load a sheet first",
			Code:    "SHEET006",
		},
	},
	{
		// Raised by sheet clients, usually inside a LoadError.
		match: func(err error) bool {
			return strings.Contains(err.Error(), "invalid spreadsheet reference")
		},
		msg: UserMessage{
			Message: "The URL or worksheet number does not address a sheet",
			Action:  "Paste the full spreadsheet URL and check the worksheet number",
			Code:    "SHEET007",
		},
	},
	{
		match: is(ErrLoad),
		msg: UserMessage{
			Message: "The sheet could not be loaded",
			Action:  "Check the sheet contents and load again",
			Code:    "SHEET003",
		},
	},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user messages.
// The first matching pattern wins, so more specific patterns come first.
var errorPatterns = []errorPattern{
	{
		pattern: "not a number",
		msg: UserMessage{
			Message: "A price is not a number",
			Action:  "Use a plain decimal such as 19.99",
			Code:    "VAL002",
		},
	},
	{
		pattern: "too many generation requests",
		msg: UserMessage{
			Message: "Too many generation requests are in progress",
			Action:  "Please wait a moment and try again",
			Code:    "GEN003",
		},
	},
	{
		pattern: "generated output",
		msg: UserMessage{
			Message: "The generated product could not be read",
			Action:  "Try generating again",
			Code:    "GEN004",
		},
	},
	{
		pattern: "generation is not configured",
		msg: UserMessage{
			Message: "Text generation is not configured",
			Action:  "Set TEXTGEN_PROVIDER and the provider's API key",
			Code:    "GEN005",
		},
	},
	{
		pattern: "malformed request",
		msg: UserMessage{
			Message: "The request could not be read",
			Action:  "Check the request and try again",
			Code:    "REQ003",
		},
	},
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
// Sentinel classes are checked first, then text patterns. If nothing
// matches, a generic fallback with code ERR000 is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, ec := range errorClasses {
		if ec.match(err) {
			return ec.msg
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

// IsUserFacing reports whether an error maps to a specific message rather
// than the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error (for logs) with its user message.
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

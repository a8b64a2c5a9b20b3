package etl

// errors.go maps technical errors to user-facing messages with support codes.
//
// Codes by category:
//
//	DB001-DB007   storage (duplicate id, constraints, connectivity, timeouts)
//	VAL001-VAL006 row validation (dates, numbers, ids, amounts, packages, references)
//	IMP001-IMP007 import and webhook requests (empty input, bad payload, busy,
//	              unknown source, oversize body, cancellation, bad signature)
//	ERR000        fallback; check the logs for the technical error
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns come before general ones.

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyInput is returned when an import has no header row.
	ErrEmptyInput = errors.New("empty input: no header row found")
	// ErrInvalidPayload is returned when a webhook lacks its identity fields.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrUnknownSource is returned for an unsupported source tag.
	ErrUnknownSource = errors.New("unknown source")
	// ErrInvalidSignature is returned when a webhook signature does not verify.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// UserMessage is a user-friendly rendering of an error.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Storage
	{"duplicate key", UserMessage{"A booking with this ID already exists", "Retry the import; a fresh ID will be allocated", "DB001"}},
	{"unique constraint", UserMessage{"This value must be unique but already exists", "Check for duplicate booking references in the file", "DB002"}},
	{"violates unique", UserMessage{"A duplicate value was found", "Check for duplicate booking references in the file", "DB002"}},
	{"foreign key", UserMessage{"Referenced record does not exist", "Create the agent, yacht or user first", "DB003"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"timeout", UserMessage{"Operation timed out", "Try a smaller file or try again later", "DB006"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},

	// Row validation
	{"invalid date", UserMessage{"Invalid date format detected", "Use YYYY-MM-DD, DD/MM/YYYY or 14 Mar 2025", "VAL001"}},
	{"invalid number", UserMessage{"Invalid number format detected", "Use plain decimal amounts", "VAL002"}},
	{"is required", UserMessage{"Required field is empty", "Ensure every booking has an ID or reference", "VAL003"}},
	{"negative amount", UserMessage{"Amounts cannot be negative", "Check total, commission and paid columns", "VAL004"}},
	{"invalid package", UserMessage{"Package quantity or rate is invalid", "Quantities and rates must be zero or more", "VAL005"}},
	{"unresolved reference", UserMessage{"Agent, yacht or user name not recognised", "Check the spelling against the directory", "VAL006"}},

	// Import requests
	{"empty input", UserMessage{"The uploaded file is empty", "Upload a file with a header row and data rows", "IMP001"}},
	{"invalid payload", UserMessage{"Webhook payload is missing required fields", "Check the webhook configuration", "IMP002"}},
	{"import busy", UserMessage{"Another import is in progress", "Please wait a moment and try again", "IMP003"}},
	{"unknown source", UserMessage{"Unknown import source", "Use default or master", "IMP004"}},
	{"exceeds maximum size", UserMessage{"File exceeds maximum size limit", "Split the file into smaller chunks", "IMP005"}},
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "IMP006"}},
	{"deadline exceeded", UserMessage{"Request timed out", "Try a smaller file or try again later", "IMP006"}},
	{"invalid webhook signature", UserMessage{"Webhook signature did not verify", "Check the shared webhook secret", "IMP007"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError returns the first matching user message, or the ERR000 fallback.
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

// FormatUserError renders "Message (Code: XXX). Action".
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

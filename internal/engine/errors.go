package engine

import (
	"errors"
	"fmt"
)

// PolicyError represents an engine policy that cannot be run.
//
// Policy errors are detected by New before any domain is claimed, so a
// rejected policy leaves the store untouched.
type PolicyError struct {
	// Code identifies the error category.
	Code PolicyErrorCode

	// Message is a human-readable description.
	Message string

	// Phase is the phase the error refers to, if any.
	Phase string
}

// PolicyErrorCode categorizes policy errors.
type PolicyErrorCode string

const (
	// ErrCodeInvalidTimeout indicates a timeout guard that cannot fire.
	ErrCodeInvalidTimeout PolicyErrorCode = "INVALID_TIMEOUT"

	// ErrCodeInvalidThreshold indicates a negative or missing threshold.
	ErrCodeInvalidThreshold PolicyErrorCode = "INVALID_THRESHOLD"

	// ErrCodeUnsubscribedRequirement indicates a required-ready module
	// that is not subscribed.
	ErrCodeUnsubscribedRequirement PolicyErrorCode = "UNSUBSCRIBED_REQUIREMENT"
)

// Error implements the error interface.
func (e *PolicyError) Error() string {
	if e.Phase != "" {
		return fmt.Sprintf("%s: %s (phase=%s)", e.Code, e.Message, e.Phase)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsPolicyError returns true if err is, or wraps, a PolicyError.
func IsPolicyError(err error) bool {
	var pe *PolicyError
	return errors.As(err, &pe)
}

// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Training errors. Both abort the run; nothing is published.
	ErrEmptyCorpus     = errors.New("empty training corpus")
	ErrMissingAssignee = errors.New("record is missing an assignee")

	// Prediction errors.
	ErrModelNotLoaded = errors.New("model not loaded")
	ErrEmptyInput     = errors.New("no text content provided for prediction")

	// Service errors.
	ErrTrainingInProgress = errors.New("training already in progress")
	ErrInvalidModel       = errors.New("invalid model")
	ErrNotFound           = errors.New("not found")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
// Training input errors are permanent; everything else gets another attempt
// unless it is explicitly marked otherwise.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrEmptyCorpus) ||
		errors.Is(err, ErrMissingAssignee) ||
		errors.Is(err, ErrTrainingInProgress) ||
		errors.Is(err, context.Canceled) {
		return false
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return true
}

// Package storage provides the data persistence layer for dispatch.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/dispatch/internal/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrEmptySlice       = errors.New("slice cannot be empty")
	ErrInvalidTicket    = errors.New("invalid ticket")
	ErrInvalidRun       = errors.New("invalid training run")
	ErrRunAlreadyExists = errors.New("training run already exists")
	ErrRunNotFound      = errors.New("training run not found")
	ErrRunAlreadyClosed = errors.New("training run already finished")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTickets validates a batch of tickets for import.
func validateTickets(tickets []model.TicketRecord) error {
	if tickets == nil {
		return fmt.Errorf("%w: tickets", ErrNilParameter)
	}
	if len(tickets) == 0 {
		return fmt.Errorf("%w: tickets", ErrEmptySlice)
	}

	for i, ticket := range tickets {
		if !ticket.HasAssignee() {
			return fmt.Errorf("ticket at index %d: %w: missing assignee", i, ErrInvalidTicket)
		}
	}
	return nil
}

// validateRun validates a training run before it is written.
func validateRun(run *model.TrainingRun) error {
	if run == nil {
		return fmt.Errorf("%w: training run", ErrNilParameter)
	}
	if err := run.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRun, err)
	}
	return nil
}

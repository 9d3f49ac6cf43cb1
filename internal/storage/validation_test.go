package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/dispatch/internal/model"
)

func TestValidateContext(t *testing.T) {
	tests := []struct {
		ctx     context.Context
		name    string
		wantErr bool
	}{
		{
			name:    "valid context",
			ctx:     context.Background(),
			wantErr: false,
		},
		{
			name:    "nil context",
			ctx:     nil,
			wantErr: true,
		},
		{
			name: "canceled context still valid",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			}(),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateContext(tt.ctx)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateContext() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateString(t *testing.T) {
	tests := []struct {
		name      string
		str       string
		paramName string
		wantErr   bool
	}{
		{
			name:      "valid string",
			str:       "run-1",
			paramName: "id",
			wantErr:   false,
		},
		{
			name:      "empty string",
			str:       "",
			paramName: "id",
			wantErr:   true,
		},
		{
			name:      "whitespace only",
			str:       "  \t",
			paramName: "dbPath",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateString(tt.str, tt.paramName)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateString() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), tt.paramName) {
				t.Errorf("validateString() error should contain param name %s, got %v", tt.paramName, err)
			}
		})
	}
}

func TestValidateTickets(t *testing.T) {
	tests := []struct {
		wantErr error
		name    string
		tickets []model.TicketRecord
	}{
		{
			name: "valid batch",
			tickets: []model.TicketRecord{
				{ID: "1", Title: "Login broken", Assignee: "alice"},
				{Title: "No ID is fine", Assignee: "bob"},
			},
		},
		{
			name:    "nil slice",
			tickets: nil,
			wantErr: ErrNilParameter,
		},
		{
			name:    "empty slice",
			tickets: []model.TicketRecord{},
			wantErr: ErrEmptySlice,
		},
		{
			name: "missing assignee",
			tickets: []model.TicketRecord{
				{ID: "1", Title: "Login broken", Assignee: "alice"},
				{ID: "2", Title: "Nobody owns this", Assignee: "   "},
			},
			wantErr: ErrInvalidTicket,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTickets(tt.tickets)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("validateTickets() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("validateTickets() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateTickets_ReportsIndex(t *testing.T) {
	err := validateTickets([]model.TicketRecord{
		{Title: "ok", Assignee: "alice"},
		{Title: "bad"},
	})
	if err == nil || !strings.Contains(err.Error(), "index 1") {
		t.Errorf("validateTickets() error should name index 1, got %v", err)
	}
}

func TestValidateRun(t *testing.T) {
	now := time.Now()

	tests := []struct {
		run     *model.TrainingRun
		name    string
		wantErr error
	}{
		{
			name: "valid running run",
			run: &model.TrainingRun{
				ID:        "run-1",
				StartedAt: now,
				Status:    model.TrainingRunRunning,
			},
		},
		{
			name:    "nil run",
			run:     nil,
			wantErr: ErrNilParameter,
		},
		{
			name: "missing ID",
			run: &model.TrainingRun{
				StartedAt: now,
				Status:    model.TrainingRunRunning,
			},
			wantErr: ErrInvalidRun,
		},
		{
			name: "missing start time",
			run: &model.TrainingRun{
				ID:     "run-1",
				Status: model.TrainingRunRunning,
			},
			wantErr: ErrInvalidRun,
		},
		{
			name: "unknown status",
			run: &model.TrainingRun{
				ID:        "run-1",
				StartedAt: now,
				Status:    "paused",
			},
			wantErr: ErrInvalidRun,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRun(tt.run)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("validateRun() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("validateRun() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// Package service defines the interfaces shared between dispatch components.
package service

import (
	"context"

	"github.com/Veraticus/dispatch/internal/artifact"
	"github.com/Veraticus/dispatch/internal/model"
)

// CorpusSource supplies the labeled tickets for a training run.
type CorpusSource interface {
	Records(ctx context.Context) ([]model.TicketRecord, error)
	// String names the source in logs and training run history.
	String() string
}

// TicketStore reads the persisted ticket corpus.
type TicketStore interface {
	GetTickets(ctx context.Context) ([]model.TicketRecord, error)
	CountTickets(ctx context.Context) (int, error)
}

// RunRecorder keeps the audit trail of training runs.
type RunRecorder interface {
	CreateTrainingRun(ctx context.Context, run *model.TrainingRun) error
	FinishTrainingRun(ctx context.Context, run *model.TrainingRun) error
	ListTrainingRuns(ctx context.Context, limit int) ([]model.TrainingRun, error)
}

// ArtifactStore publishes trained models and loads the active one.
type ArtifactStore interface {
	Save(ctx context.Context, id string, m *model.Model) (*artifact.Info, error)
	Load(ctx context.Context) (*model.Model, error)
}

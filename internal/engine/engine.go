// Package engine runs training jobs end to end: load the corpus, train,
// self-evaluate, publish the artifact and swap it into the registry.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Veraticus/dispatch/internal/artifact"
	"github.com/Veraticus/dispatch/internal/common"
	"github.com/Veraticus/dispatch/internal/model"
	"github.com/Veraticus/dispatch/internal/registry"
	"github.com/Veraticus/dispatch/internal/service"
	"github.com/Veraticus/dispatch/internal/trainer"
	"github.com/google/uuid"
)

// TrainingEngine serializes training runs. At most one run is in flight; a
// concurrent request fails fast with common.ErrTrainingInProgress.
type TrainingEngine struct {
	source    service.CorpusSource
	artifacts service.ArtifactStore
	runs      service.RunRecorder
	registry  *registry.Registry
	now       func() time.Time
	newID     func() string
	version   string
	mu        sync.Mutex
	running   atomic.Bool
}

// Config holds configuration options for the training engine.
type Config struct {
	Clock   func() time.Time
	NewID   func() string
	Version string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Clock:   time.Now,
		NewID:   uuid.NewString,
		Version: model.SchemaVersion,
	}
}

// Result summarizes a successful training run.
type Result struct {
	Model      *model.Model
	Artifact   *artifact.Info
	Evaluation trainer.Evaluation
	Run        model.TrainingRun
}

// New creates a training engine. runs may be nil when no history is kept.
func New(source service.CorpusSource, artifacts service.ArtifactStore, runs service.RunRecorder, reg *registry.Registry) *TrainingEngine {
	return NewWithConfig(source, artifacts, runs, reg, DefaultConfig())
}

// NewWithConfig creates a training engine with custom configuration.
func NewWithConfig(source service.CorpusSource, artifacts service.ArtifactStore, runs service.RunRecorder, reg *registry.Registry, config Config) *TrainingEngine {
	defaults := DefaultConfig()
	if config.Clock == nil {
		config.Clock = defaults.Clock
	}
	if config.NewID == nil {
		config.NewID = defaults.NewID
	}
	if config.Version == "" {
		config.Version = defaults.Version
	}

	return &TrainingEngine{
		source:    source,
		artifacts: artifacts,
		runs:      runs,
		registry:  reg,
		now:       config.Clock,
		newID:     config.NewID,
		version:   config.Version,
	}
}

// Running reports whether a training run is in flight.
func (e *TrainingEngine) Running() bool {
	return e.running.Load()
}

// LoadActive installs the published artifact into the registry. It returns
// common.ErrModelNotLoaded when nothing has been published yet.
func (e *TrainingEngine) LoadActive(ctx context.Context) (*model.Model, error) {
	m, err := e.artifacts.Load(ctx)
	if err != nil {
		return nil, err
	}
	e.registry.Swap(m)

	slog.Info("Model loaded",
		"assignees", len(m.Assignees),
		"vocabulary_size", m.VocabularySize(),
		"training_samples", m.TrainingSamples(),
		"trained_at", m.Metadata.TrainedAt)

	return m, nil
}

// Train runs one training job. Nothing is published and the registry is left
// untouched unless every step succeeds.
func (e *TrainingEngine) Train(ctx context.Context) (*Result, error) {
	if !e.mu.TryLock() {
		return nil, common.ErrTrainingInProgress
	}
	defer e.mu.Unlock()

	e.running.Store(true)
	defer e.running.Store(false)

	run := &model.TrainingRun{
		ID:        e.newID(),
		Source:    e.source.String(),
		Status:    model.TrainingRunRunning,
		StartedAt: e.now().UTC(),
	}

	if e.runs != nil {
		if err := e.runs.CreateTrainingRun(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to record training run: %w", err)
		}
	}

	slog.Info("Starting training run", "run_id", run.ID, "source", run.Source)

	result, err := e.train(ctx, run)

	finished := e.now().UTC()
	run.FinishedAt = &finished
	if err != nil {
		run.Status = model.TrainingRunFailed
		run.Error = err.Error()
	} else {
		run.Status = model.TrainingRunSucceeded
	}

	if e.runs != nil {
		// Record the outcome even if the caller's context was canceled.
		if finishErr := e.runs.FinishTrainingRun(context.WithoutCancel(ctx), run); finishErr != nil {
			slog.Error("failed to record training run outcome", "run_id", run.ID, "error", finishErr)
		}
	}

	if err != nil {
		slog.Error("Training run failed", "run_id", run.ID, "error", err)
		return nil, err
	}

	result.Run = *run
	slog.Info("Training run finished",
		"run_id", run.ID,
		"duration", run.Duration(),
		"accuracy", run.Accuracy,
		"digest", run.Digest)

	return result, nil
}

func (e *TrainingEngine) train(ctx context.Context, run *model.TrainingRun) (*Result, error) {
	records, err := e.source.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus from %s: %w", e.source, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m, err := trainer.Train(records, trainer.WithClock(e.now), trainer.WithVersion(e.version))
	if err != nil {
		return nil, fmt.Errorf("training failed: %w", err)
	}

	run.Samples = m.TrainingSamples()
	run.Assignees = len(m.Assignees)
	run.VocabularySize = m.VocabularySize()

	eval, err := trainer.Evaluate(m, records)
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}
	run.Accuracy = eval.Accuracy

	info, err := e.artifacts.Save(ctx, run.ID, m)
	if err != nil {
		return nil, fmt.Errorf("failed to publish model: %w", err)
	}
	run.ArtifactPath = info.Path
	run.Digest = info.Digest

	e.registry.Swap(m)

	return &Result{
		Model:      m,
		Artifact:   info,
		Evaluation: eval,
	}, nil
}

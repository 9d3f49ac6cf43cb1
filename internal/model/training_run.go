package model

import (
	"fmt"
	"time"
)

// TrainingRunStatus tracks where a training run ended up.
type TrainingRunStatus string

const (
	// TrainingRunRunning marks a run that has started but not finished.
	TrainingRunRunning TrainingRunStatus = "running"
	// TrainingRunSucceeded marks a run whose artifact was published.
	TrainingRunSucceeded TrainingRunStatus = "succeeded"
	// TrainingRunFailed marks a run that aborted without publishing.
	TrainingRunFailed TrainingRunStatus = "failed"
)

// TrainingRun is the audit record of one training job.
type TrainingRun struct {
	StartedAt      time.Time
	FinishedAt     *time.Time
	ID             string
	Source         string
	Status         TrainingRunStatus
	ArtifactPath   string
	Digest         string
	Error          string
	Samples        int
	Assignees      int
	VocabularySize int
	Accuracy       float64
}

// Duration returns how long the run took, or zero while it is still running.
func (r *TrainingRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Validate ensures the run has the fields storage requires.
func (r *TrainingRun) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("training run ID is required")
	}
	if r.StartedAt.IsZero() {
		return fmt.Errorf("training run start time is required")
	}
	switch r.Status {
	case TrainingRunRunning, TrainingRunSucceeded, TrainingRunFailed:
	default:
		return fmt.Errorf("invalid training run status %q", r.Status)
	}
	if r.Accuracy < 0.0 || r.Accuracy > 1.0 {
		return fmt.Errorf("accuracy must be between 0.0 and 1.0, got %.2f", r.Accuracy)
	}
	return nil
}

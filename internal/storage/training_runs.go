package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/dispatch/internal/model"
	"github.com/mattn/go-sqlite3"
)

const trainingRunColumns = `
	id, source, status, started_at, finished_at, samples, assignees,
	vocabulary_size, accuracy, artifact_path, digest, error
`

// CreateTrainingRun records the start of a training run.
func (s *SQLiteStorage) CreateTrainingRun(ctx context.Context, run *model.TrainingRun) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRun(run); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO training_runs (`+trainingRunColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Source,
		string(run.Status),
		run.StartedAt.UTC(),
		nullTime(run.FinishedAt),
		run.Samples,
		run.Assignees,
		run.VocabularySize,
		run.Accuracy,
		run.ArtifactPath,
		run.Digest,
		run.Error,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%w: %s", ErrRunAlreadyExists, run.ID)
		}
		return fmt.Errorf("failed to create training run: %w", err)
	}
	return nil
}

// FinishTrainingRun stores the outcome of a run that is still marked running.
func (s *SQLiteStorage) FinishTrainingRun(ctx context.Context, run *model.TrainingRun) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRun(run); err != nil {
		return err
	}
	if run.Status == model.TrainingRunRunning || run.FinishedAt == nil {
		return fmt.Errorf("%w: finished run needs a final status and finish time", ErrInvalidRun)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE training_runs
		SET status = ?, finished_at = ?, samples = ?, assignees = ?,
			vocabulary_size = ?, accuracy = ?, artifact_path = ?, digest = ?, error = ?
		WHERE id = ? AND status = ?
	`,
		string(run.Status),
		run.FinishedAt.UTC(),
		run.Samples,
		run.Assignees,
		run.VocabularySize,
		run.Accuracy,
		run.ArtifactPath,
		run.Digest,
		run.Error,
		run.ID,
		string(model.TrainingRunRunning),
	)
	if err != nil {
		return fmt.Errorf("failed to finish training run: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected > 0 {
		return nil
	}

	if _, err := s.GetTrainingRun(ctx, run.ID); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", ErrRunAlreadyClosed, run.ID)
}

// GetTrainingRun retrieves a single run by ID.
func (s *SQLiteStorage) GetTrainingRun(ctx context.Context, id string) (*model.TrainingRun, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+trainingRunColumns+` FROM training_runs WHERE id = ?`, id)
	run, err := scanTrainingRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListTrainingRuns returns the most recent runs first. A limit of zero or
// less returns every run.
func (s *SQLiteStorage) ListTrainingRuns(ctx context.Context, limit int) ([]model.TrainingRun, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+trainingRunColumns+`
		FROM training_runs
		ORDER BY started_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query training runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []model.TrainingRun
	for rows.Next() {
		run, err := scanTrainingRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate training runs: %w", err)
	}
	return runs, nil
}

// FailAbandonedRuns marks runs left in the running state, for example by a
// crashed process, as failed. It returns how many were updated.
func (s *SQLiteStorage) FailAbandonedRuns(ctx context.Context, now time.Time) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE training_runs
		SET status = ?, finished_at = ?, error = ?
		WHERE status = ?
	`,
		string(model.TrainingRunFailed),
		now.UTC(),
		"abandoned: process exited before the run finished",
		string(model.TrainingRunRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to fail abandoned runs: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check update result: %w", err)
	}
	return int(affected), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrainingRun(row rowScanner) (*model.TrainingRun, error) {
	var run model.TrainingRun
	var status string
	var finishedAt sql.NullTime

	err := row.Scan(
		&run.ID,
		&run.Source,
		&status,
		&run.StartedAt,
		&finishedAt,
		&run.Samples,
		&run.Assignees,
		&run.VocabularySize,
		&run.Accuracy,
		&run.ArtifactPath,
		&run.Digest,
		&run.Error,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan training run: %w", err)
	}

	run.Status = model.TrainingRunStatus(status)
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

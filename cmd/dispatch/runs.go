package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Veraticus/dispatch/internal/cli"
	"github.com/Veraticus/dispatch/internal/model"
	"github.com/spf13/cobra"
)

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show training run history",
		Args:  cobra.NoArgs,
		RunE:  runRuns,
	}

	cmd.Flags().IntP("limit", "n", 20, "number of runs to show (0 for all)")

	return cmd
}

func runRuns(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	limit, _ := cmd.Flags().GetInt("limit")

	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	db, err := initStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	runs, err := db.ListTrainingRuns(ctx, limit)
	if err != nil {
		return err
	}

	return writeRuns(cmd.OutOrStdout(), runs)
}

func writeRuns(w io.Writer, runs []model.TrainingRun) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, cli.FormatInfo("No training runs recorded yet"))
		return err
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		duration := "-"
		if run.FinishedAt != nil {
			duration = run.Duration().Round(time.Millisecond).String()
		}
		rows = append(rows, []string{
			shortID(run.ID),
			statusLabel(run.Status),
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			duration,
			fmt.Sprintf("%d", run.Samples),
			fmt.Sprintf("%d", run.Assignees),
			fmt.Sprintf("%d", run.VocabularySize),
			fmt.Sprintf("%.1f%%", run.Accuracy*100),
			shortDigest(run.Digest),
			truncate(run.Error, 48),
		})
	}

	_, err := fmt.Fprintln(w, cli.RenderTable(
		[]string{"ID", "STATUS", "STARTED", "DURATION", "SAMPLES", "ASSIGNEES", "VOCAB", "ACCURACY", "DIGEST", "ERROR"},
		rows,
	))
	return err
}

func statusLabel(status model.TrainingRunStatus) string {
	switch status {
	case model.TrainingRunSucceeded:
		return cli.SuccessStyle.Render(string(status))
	case model.TrainingRunFailed:
		return cli.ErrorStyle.Render(string(status))
	default:
		return cli.WarningStyle.Render(string(status))
	}
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Veraticus/dispatch/internal/cli"
	"github.com/Veraticus/dispatch/internal/config"
	"github.com/Veraticus/dispatch/internal/engine"
	"github.com/spf13/cobra"
)

var corpusOverrides = map[string]string{
	"csv":      config.KeyCorpusCSV,
	"source":   config.KeyCorpusSource,
	"model":    config.KeyModelPath,
	"compress": config.KeyModelCompress,
}

func trainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model and publish it",
		Long: `Train an assignee model from the configured corpus and publish it as the
active artifact. The previous artifact is archived and the run is recorded in
the training history.`,
		Args: cobra.NoArgs,
		RunE: runTrain,
	}

	cmd.Flags().String("csv", "", "CSV export to train from (overrides corpus.csv)")
	cmd.Flags().String("source", "", "corpus source: csv or db (overrides corpus.source)")
	cmd.Flags().String("model", "", "artifact path (overrides model.path)")
	cmd.Flags().Bool("compress", false, "write a zstd-compressed artifact")

	return cmd
}

func runTrain(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd, corpusOverrides)
	if err != nil {
		return err
	}

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	slog.Info(cli.FormatTitle("Training assignee model"), "source", cfg.Corpus.Source)

	handler := cli.NewInterruptHandler(cmd.ErrOrStderr(), "Training").
		WithResumeHint("The previous model is still active")
	defer handler.Stop()
	result, err := a.engine.Train(handler.HandleInterrupts(ctx))
	if err != nil {
		return err
	}

	return printTrainResult(cmd.OutOrStdout(), result)
}

func printTrainResult(w io.Writer, result *engine.Result) error {
	m := result.Model

	var b strings.Builder
	fmt.Fprintf(&b, "Run:              %s\n", result.Run.ID)
	fmt.Fprintf(&b, "Training samples: %d\n", m.TrainingSamples())
	fmt.Fprintf(&b, "Assignees:        %s\n", strings.Join(m.Assignees, ", "))
	fmt.Fprintf(&b, "Vocabulary size:  %d\n", m.VocabularySize())
	fmt.Fprintf(&b, "Accuracy:         %.1f%% (%d/%d)\n",
		result.Evaluation.Accuracy*100, result.Evaluation.Correct, result.Evaluation.Total)
	fmt.Fprintf(&b, "Duration:         %s\n", result.Run.Duration())
	if result.Artifact != nil {
		fmt.Fprintf(&b, "Artifact:         %s\n", result.Artifact.Path)
		fmt.Fprintf(&b, "Digest:           %s", result.Artifact.Digest)
	}

	if len(result.Evaluation.Samples) > 0 {
		b.WriteString("\n\nSample predictions:")
		for _, p := range result.Evaluation.Samples {
			mark := cli.SuccessStyle.Render(cli.SuccessIcon)
			if !p.Correct {
				mark = cli.ErrorStyle.Render(cli.ErrorIcon)
			}
			fmt.Fprintf(&b, "\n  %s %s: predicted %s, actual %s", mark, p.ID, p.Predicted, p.Actual)
		}
	}

	_, err := fmt.Fprintln(w, cli.RenderBox(cli.FormatSuccess("Model published"), b.String()))
	return err
}

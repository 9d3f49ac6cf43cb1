package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/Veraticus/dispatch/internal/cli"
	"github.com/Veraticus/dispatch/internal/common"
	"github.com/Veraticus/dispatch/internal/config"
	"github.com/Veraticus/dispatch/internal/model"
	"github.com/Veraticus/dispatch/internal/normalize"
	"github.com/Veraticus/dispatch/internal/scorer"
	"github.com/spf13/cobra"
)

func predictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict [text...]",
		Short: "Predict the assignee for a ticket",
		Long: `Predict who should handle a ticket using the active model.

Pass the ticket as --title/--description/--labels, or as free text arguments.`,
		Example: `  dispatch predict --title "Login fails" --labels bug,auth
  dispatch predict dashboard is not responsive --top 3`,
		RunE: runPredict,
	}

	cmd.Flags().String("title", "", "ticket title")
	cmd.Flags().String("description", "", "ticket description")
	cmd.Flags().StringSlice("labels", nil, "ticket labels (comma-separated)")
	cmd.Flags().Int("top", 0, "show the N best-scoring assignees")
	cmd.Flags().String("model", "", "artifact path (overrides model.path)")

	return cmd
}

func runPredict(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	title, _ := cmd.Flags().GetString("title")
	description, _ := cmd.Flags().GetString("description")
	labels, _ := cmd.Flags().GetStringSlice("labels")
	top, _ := cmd.Flags().GetInt("top")

	text := predictionText(title, description, labels, args)
	if text == "" {
		return common.NewUserError("Provide a --title, --description or ticket text to predict", common.ErrEmptyInput)
	}

	cfg, err := loadConfig(cmd, map[string]string{"model": config.KeyModelPath})
	if err != nil {
		return err
	}

	artifacts, err := newArtifactStore(cfg)
	if err != nil {
		return err
	}

	m, err := artifacts.Load(ctx)
	if err != nil {
		return common.NewUserError("No trained model found; run dispatch train first", err)
	}

	return writePrediction(cmd.OutOrStdout(), scorer.New(m), text, top)
}

// predictionText joins structured fields with any free text arguments.
func predictionText(title, description string, labels, args []string) string {
	text := normalize.CombineText(title, description, labels)
	if len(args) > 0 {
		text += " " + strings.Join(args, " ")
	}
	return strings.TrimSpace(text)
}

func writePrediction(w io.Writer, s *scorer.Scorer, text string, top int) error {
	if top <= 0 {
		assignee, err := s.Predict(text)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, assignee)
		return err
	}

	rankings, err := s.Rank(text)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, renderRankings(rankings.TopN(top)))
	return err
}

func renderRankings(rankings model.AssigneeRankings) string {
	rows := make([][]string, 0, len(rankings))
	for i, r := range rankings {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			r.Assignee,
			fmt.Sprintf("%.4f", r.Score),
		})
	}
	return cli.RenderTable([]string{"RANK", "ASSIGNEE", "LOG SCORE"}, rows)
}

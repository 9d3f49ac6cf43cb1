package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/dispatch/internal/artifact"
	"github.com/Veraticus/dispatch/internal/cli"
	"github.com/Veraticus/dispatch/internal/common"
	"github.com/Veraticus/dispatch/internal/config"
	"github.com/Veraticus/dispatch/internal/model"
	"github.com/Veraticus/dispatch/internal/storage"
	"github.com/spf13/cobra"
)

func infoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show the active model and ticket corpus",
		Args:  cobra.NoArgs,
		RunE:  runInfo,
	}

	cmd.Flags().String("model", "", "artifact path (overrides model.path)")

	return cmd
}

func runInfo(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

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

	current, err := artifacts.Current(ctx)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		slog.Warn("Failed to read artifact metadata", "error", err)
	}

	var counts []storage.AssigneeCount
	db, err := initStorage(ctx, cfg)
	if err != nil {
		slog.Warn("Ticket database unavailable", "error", err)
	} else {
		defer func() { _ = db.Close() }()
		if counts, err = db.GetAssigneeCounts(ctx); err != nil {
			slog.Warn("Failed to count tickets", "error", err)
		}
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), renderInfo(m, current, counts))
	return err
}

func renderInfo(m *model.Model, current *artifact.Info, counts []storage.AssigneeCount) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assignees:        %s\n", strings.Join(m.Assignees, ", "))
	fmt.Fprintf(&b, "Vocabulary size:  %d\n", m.VocabularySize())
	fmt.Fprintf(&b, "Training samples: %d\n", m.TrainingSamples())
	fmt.Fprintf(&b, "Trained at:       %s\n", m.Metadata.TrainedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Version:          %s", m.Metadata.Version)
	if current != nil {
		fmt.Fprintf(&b, "\nArtifact:         %s", current.ID)
		fmt.Fprintf(&b, "\nDigest:           %s", current.Digest)
		fmt.Fprintf(&b, "\nCompressed:       %t", current.Compressed)
	}

	rows := make([][]string, 0, len(m.Assignees))
	for _, assignee := range m.Assignees {
		stats, _ := m.Stats(assignee)
		rows = append(rows, []string{
			assignee,
			fmt.Sprintf("%d", stats.Count),
			fmt.Sprintf("%d", stats.TotalTerms),
			fmt.Sprintf("%d", len(stats.TermFreqs)),
		})
	}
	b.WriteString("\n\n")
	b.WriteString(cli.RenderTable([]string{"ASSIGNEE", "TICKETS", "TERMS", "DISTINCT"}, rows))

	if len(counts) > 0 {
		total := 0
		for _, c := range counts {
			total += c.Tickets
		}
		fmt.Fprintf(&b, "\n\n%s %d tickets stored across %d assignees", cli.FolderIcon, total, len(counts))
	}

	return cli.RenderBox(cli.ChartIcon+" Active model", b.String())
}

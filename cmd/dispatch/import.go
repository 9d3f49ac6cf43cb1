package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/dispatch/internal/cli"
	"github.com/Veraticus/dispatch/internal/corpus"
	"github.com/Veraticus/dispatch/internal/model"
	"github.com/Veraticus/dispatch/internal/storage"
	"github.com/spf13/cobra"
)

const importBatchSize = 500

type ticketSaver interface {
	SaveTickets(ctx context.Context, tickets []model.TicketRecord, source string) (storage.ImportResult, error)
}

type importSummary struct {
	Files      int
	Read       int
	Unassigned int
	Inserted   int
	Duplicates int
	Failed     []string
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [files or globs...]",
		Short: "Import ticket CSV exports into the local database",
		Long: `Import ticket CSV exports into the local ticket database so later training
runs can use corpus.source=db. Tickets are keyed by ID (or by content when the
export has no ID column), so re-importing the same export is safe.

With no arguments the configured corpus.csv is imported.`,
		Example: `  dispatch import exports/*.csv
  dispatch import data/issues_mock.csv --dry-run`,
		RunE: runImport,
	}

	cmd.Flags().Bool("dry-run", false, "parse files and report counts without saving")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		args = []string{cfg.Corpus.CSV}
	}
	files, err := expandGlobs(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found to import")
	}

	slog.Info(cli.FormatTitle("Importing tickets"), "file_count", len(files), "dry_run", dryRun)

	var saver ticketSaver
	if !dryRun {
		db, err := initStorage(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		saver = db
	}

	handler := cli.NewInterruptHandler(cmd.ErrOrStderr(), "Import").
		WithResumeHint("Rerun dispatch import to continue; tickets already saved are skipped")
	ctx = handler.HandleInterrupts(ctx)
	defer handler.Stop()

	summary, err := importTickets(ctx, saver, files, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), renderImportSummary(summary, dryRun))
	return err
}

// expandGlobs resolves each pattern, falling back to the literal path when a
// pattern matches nothing.
func expandGlobs(patterns []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(pattern); err == nil {
				matches = []string{pattern}
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	return files, nil
}

// importTickets reads every file and saves assigned tickets in batches. A nil
// saver only parses. Unreadable files are reported and skipped.
func importTickets(ctx context.Context, saver ticketSaver, files []string, progress io.Writer) (importSummary, error) {
	var summary importSummary
	parsed := make(map[string][]model.TicketRecord, len(files))
	total := 0

	for _, path := range files {
		records, err := corpus.ReadCSVFile(path)
		if err != nil {
			slog.Error("Failed to read ticket export", "file", path, "error", err)
			summary.Failed = append(summary.Failed, path)
			continue
		}
		summary.Files++
		summary.Read += len(records)

		assigned := records[:0]
		for _, rec := range records {
			if rec.HasAssignee() {
				assigned = append(assigned, rec)
			}
		}
		summary.Unassigned += len(records) - len(assigned)
		parsed[path] = assigned
		total += len(assigned)
	}

	if saver == nil || total == 0 {
		return summary, nil
	}

	bar := cli.NewProgressBar(progress, total, "Importing tickets...")
	for _, path := range files {
		records := parsed[path]
		for start := 0; start < len(records); start += importBatchSize {
			if err := ctx.Err(); err != nil {
				return summary, err
			}

			batch := records[start:min(start+importBatchSize, len(records))]
			result, err := saver.SaveTickets(ctx, batch, filepath.Base(path))
			if err != nil {
				return summary, fmt.Errorf("failed to save tickets from %s: %w", path, err)
			}
			summary.Inserted += result.Inserted
			summary.Duplicates += result.Duplicates

			if err := bar.Add(len(batch)); err != nil {
				slog.Warn("Failed to update progress bar", "error", err)
			}
		}
	}

	return summary, nil
}

func renderImportSummary(s importSummary, dryRun bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Files:       %d\n", s.Files)
	fmt.Fprintf(&b, "Tickets:     %d\n", s.Read)
	fmt.Fprintf(&b, "Unassigned:  %d (skipped)", s.Unassigned)
	if !dryRun {
		fmt.Fprintf(&b, "\nInserted:    %d", s.Inserted)
		fmt.Fprintf(&b, "\nDuplicates:  %d", s.Duplicates)
	}
	for _, f := range s.Failed {
		b.WriteString("\n" + cli.FormatError("Could not read "+f))
	}

	title := cli.FormatSuccess("Import complete")
	if dryRun {
		title = cli.FormatWarning("Dry run, nothing saved")
	}
	return cli.RenderBox(title, b.String())
}

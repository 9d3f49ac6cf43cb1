package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/Veraticus/dispatch/internal/artifact"
	"github.com/Veraticus/dispatch/internal/cli"
	"github.com/Veraticus/dispatch/internal/common"
	"github.com/Veraticus/dispatch/internal/config"
	"github.com/spf13/cobra"
)

func artifactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifacts",
		Short: "Manage published model artifacts",
	}
	cmd.PersistentFlags().String("model", "", "artifact path (overrides model.path)")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the active artifact and archived versions",
		Args:  cobra.NoArgs,
		RunE:  runArtifactsList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "restore <id>",
		Short: "Make an archived artifact active again",
		Long: `Restore an archived artifact as the active model. The current artifact is
archived first. A running server keeps its loaded model until it restarts.`,
		Args: cobra.ExactArgs(1),
		RunE: runArtifactsRestore,
	})

	return cmd
}

func artifactStoreFor(cmd *cobra.Command) (*artifact.Store, error) {
	cfg, err := loadConfig(cmd, map[string]string{"model": config.KeyModelPath})
	if err != nil {
		return nil, err
	}
	return newArtifactStore(cfg)
}

func runArtifactsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := artifactStoreFor(cmd)
	if err != nil {
		return err
	}

	current, err := store.Current(ctx)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}
	archived, err := store.List(ctx)
	if err != nil {
		return err
	}

	return writeArtifacts(cmd.OutOrStdout(), current, archived)
}

func writeArtifacts(w io.Writer, current *artifact.Info, archived []artifact.Info) error {
	if current == nil && len(archived) == 0 {
		_, err := fmt.Fprintln(w, cli.FormatInfo("No artifacts published yet"))
		return err
	}

	var rows [][]string
	if current != nil {
		rows = append(rows, artifactRow(*current, cli.SuccessStyle.Render("active")))
	}
	for _, info := range archived {
		rows = append(rows, artifactRow(info, "archived"))
	}

	_, err := fmt.Fprintln(w, cli.RenderTable(
		[]string{"ID", "STATE", "PUBLISHED", "SAMPLES", "ASSIGNEES", "VOCAB", "SIZE", "DIGEST"},
		rows,
	))
	return err
}

func artifactRow(info artifact.Info, state string) []string {
	size := fmt.Sprintf("%d B", info.Size)
	if info.Compressed {
		size += " (zst)"
	}
	return []string{
		info.ID,
		state,
		info.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		fmt.Sprintf("%d", info.TrainingSamples),
		fmt.Sprintf("%d", info.Assignees),
		fmt.Sprintf("%d", info.VocabularySize),
		size,
		shortDigest(info.Digest),
	}
}

func runArtifactsRestore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := artifactStoreFor(cmd)
	if err != nil {
		return err
	}

	info, err := store.Restore(ctx, args[0])
	if errors.Is(err, common.ErrNotFound) {
		return common.NewUserError(fmt.Sprintf("No archived artifact %q; see dispatch artifacts list", args[0]), err)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Restored %s (%s)", info.ID, shortDigest(info.Digest))))
	return err
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/dispatch/internal/common"
	"github.com/Veraticus/dispatch/internal/config"
	"github.com/Veraticus/dispatch/internal/scheduler"
	"github.com/Veraticus/dispatch/internal/server"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions over HTTP",
		Long: `Start the prediction service. The active model is loaded at startup; if
none exists yet the service still starts and reports model_loaded=false until
a model is trained through POST /model/train or the retrain schedule.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	cmd.Flags().String("schedule", "", "cron schedule for retraining (overrides retrain.schedule)")
	cmd.Flags().Bool("train-on-start", false, "train immediately when no model has been published")
	cmd.Flags().String("csv", "", "CSV export to train from (overrides corpus.csv)")
	cmd.Flags().String("source", "", "corpus source: csv or db (overrides corpus.source)")
	cmd.Flags().String("model", "", "artifact path (overrides model.path)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd, map[string]string{
		"addr":     config.KeyServerAddr,
		"schedule": config.KeyRetrainSchedule,
		"csv":      config.KeyCorpusCSV,
		"source":   config.KeyCorpusSource,
		"model":    config.KeyModelPath,
	})
	if err != nil {
		return err
	}

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if n, err := a.db.FailAbandonedRuns(ctx, time.Now().UTC()); err != nil {
		slog.Warn("Failed to close abandoned training runs", "error", err)
	} else if n > 0 {
		slog.Warn("Marked abandoned training runs as failed", "count", n)
	}

	if _, err := a.engine.LoadActive(ctx); err != nil {
		if !errors.Is(err, common.ErrModelNotLoaded) {
			return fmt.Errorf("failed to load model: %w", err)
		}
		slog.Warn("No trained model available", "path", a.artifacts.Path())

		trainOnStart, _ := cmd.Flags().GetBool("train-on-start")
		if trainOnStart {
			if _, err := a.engine.Train(ctx); err != nil {
				slog.Error("Initial training failed; serving without a model", "error", err)
			}
		}
	}

	sched, err := startScheduler(cfg, a)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(server.Config{
		Registry: a.registry,
		Trainer:  a.engine,
		Logger:   slog.Default(),
		Address:  cfg.Server.Addr,
	})
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			slog.Warn("Scheduler did not stop cleanly", "error", err)
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("Prediction server stopped")
	return nil
}

// startScheduler returns nil when no retrain schedule is configured.
func startScheduler(cfg *config.Config, a *app) (*scheduler.Scheduler, error) {
	if cfg.Retrain.Schedule == "" {
		return nil, nil
	}

	opts := []scheduler.Option{
		scheduler.WithRetry(common.RetryOptions{
			MaxAttempts:  cfg.Retrain.Attempts,
			InitialDelay: time.Second,
			MaxDelay:     time.Minute,
		}),
	}
	if cfg.Retrain.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Retrain.Timezone)
		if err != nil {
			return nil, fmt.Errorf("%w: retrain.timezone %q: %w", common.ErrInvalidConfig, cfg.Retrain.Timezone, err)
		}
		opts = append(opts, scheduler.WithLocation(loc))
	}

	sched := scheduler.New(a.engine, opts...)
	if err := sched.Schedule(cfg.Retrain.Schedule); err != nil {
		return nil, err
	}
	sched.Start()

	return sched, nil
}

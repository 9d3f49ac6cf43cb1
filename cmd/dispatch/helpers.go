package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/dispatch/internal/artifact"
	"github.com/Veraticus/dispatch/internal/config"
	"github.com/Veraticus/dispatch/internal/corpus"
	"github.com/Veraticus/dispatch/internal/engine"
	"github.com/Veraticus/dispatch/internal/registry"
	"github.com/Veraticus/dispatch/internal/service"
	"github.com/Veraticus/dispatch/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// flagOverrides copies explicitly set flags onto their viper keys. Flags are
// applied per invocation so commands can share keys without fighting over a
// single BindPFlag.
func flagOverrides(cmd *cobra.Command, keys map[string]string) {
	for flag, key := range keys {
		f := cmd.Flags().Lookup(flag)
		if f != nil && f.Changed {
			viper.Set(key, f.Value.String())
		}
	}
}

func loadConfig(cmd *cobra.Command, overrides map[string]string) (*config.Config, error) {
	flagOverrides(cmd, overrides)
	return config.Load(viper.GetViper())
}

// initStorage opens and migrates the ticket database.
func initStorage(ctx context.Context, cfg *config.Config) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func newArtifactStore(cfg *config.Config) (*artifact.Store, error) {
	return artifact.NewStore(cfg.Model.Path,
		artifact.WithCompression(cfg.Model.Compress),
		artifact.WithKeep(cfg.Artifacts.Keep))
}

func newSource(cfg *config.Config, tickets service.TicketStore) service.CorpusSource {
	if cfg.Corpus.Source == config.SourceDB {
		return corpus.NewStoreSource(tickets)
	}
	return corpus.NewCSVSource(cfg.Corpus.CSV)
}

// app bundles the components a training or serving command needs.
type app struct {
	cfg       *config.Config
	db        *storage.SQLiteStorage
	artifacts *artifact.Store
	registry  *registry.Registry
	engine    *engine.TrainingEngine
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := initStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	artifacts, err := newArtifactStore(cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	reg := registry.New(nil)
	eng := engine.New(newSource(cfg, db), artifacts, db, reg)

	slog.Debug("Opened dispatch",
		"database", db.Path(),
		"model", artifacts.Path(),
		"source", cfg.Corpus.Source)

	return &app{
		cfg:       cfg,
		db:        db,
		artifacts: artifacts,
		registry:  reg,
		engine:    eng,
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		slog.Warn("Failed to close database", "error", err)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func shortDigest(digest string) string {
	const keep = len("blake3:") + 12
	if len(digest) > keep {
		return digest[:keep]
	}
	return digest
}

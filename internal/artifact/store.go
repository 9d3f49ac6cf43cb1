package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/dispatch/internal/common"
	"github.com/Veraticus/dispatch/internal/model"
)

// DefaultKeep is how many archived artifacts survive pruning by default.
const DefaultKeep = 5

// ErrInvalidID is returned for artifact IDs that could escape the archive.
var ErrInvalidID = errors.New("invalid artifact ID: cannot be empty or contain path separators")

// Info describes one published artifact.
type Info struct {
	CreatedAt       time.Time `json:"created_at"`
	TrainedAt       time.Time `json:"trained_at"`
	ID              string    `json:"id"`
	Digest          string    `json:"digest"`
	Version         string    `json:"version"`
	Path            string    `json:"-"`
	Size            int64     `json:"size"`
	Assignees       int       `json:"assignees"`
	VocabularySize  int       `json:"vocabulary_size"`
	TrainingSamples int       `json:"training_samples"`
	Compressed      bool      `json:"compressed"`
}

// Store publishes models to a single active path and keeps earlier versions
// in an archive directory next to it.
type Store struct {
	now        func() time.Time
	base       string
	archiveDir string
	keep       int
	compress   bool
}

// Option configures a Store.
type Option func(*Store)

// WithCompression stores artifacts as zstd-compressed JSON.
func WithCompression(enabled bool) Option {
	return func(s *Store) { s.compress = enabled }
}

// WithKeep limits the archive to the n newest entries. Zero or less keeps
// everything.
func WithKeep(n int) Option {
	return func(s *Store) { s.keep = n }
}

// WithClock overrides the time source used for publish timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store rooted at path, creating its directories.
func NewStore(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: model path is required", common.ErrMissingConfig)
	}

	base := strings.TrimSuffix(path, zstdExt)
	s := &Store{
		base:       base,
		archiveDir: filepath.Join(filepath.Dir(base), "archive"),
		keep:       DefaultKeep,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(s.archiveDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return s, nil
}

// Path returns where the active artifact is written.
func (s *Store) Path() string {
	if s.compress {
		return s.base + zstdExt
	}
	return s.base
}

// ArchiveDir returns the directory holding previous artifacts.
func (s *Store) ArchiveDir() string {
	return s.archiveDir
}

// Save publishes m as the active artifact under id. The previously active
// artifact, if any, is moved into the archive first. A model that fails
// validation is never written.
func (s *Store) Save(ctx context.Context, id string, m *model.Model) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateID(id); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to publish model: %w", err)
	}

	raw, err := Marshal(m)
	if err != nil {
		return nil, err
	}

	info := Info{
		ID:              id,
		CreatedAt:       s.now().UTC(),
		TrainedAt:       m.Metadata.TrainedAt,
		Digest:          Digest(raw),
		Version:         m.Metadata.Version,
		Assignees:       len(m.Assignees),
		VocabularySize:  m.VocabularySize(),
		TrainingSamples: m.TrainingSamples(),
	}

	if err := s.archiveCurrent(); err != nil {
		return nil, fmt.Errorf("failed to archive previous artifact: %w", err)
	}
	if err := s.publish(raw, &info); err != nil {
		return nil, err
	}

	s.prune(ctx)

	slog.Info("Published model artifact",
		"id", info.ID,
		"path", info.Path,
		"digest", info.Digest,
		"size", info.Size)

	return &info, nil
}

// Load reads and validates the active artifact.
func (s *Store) Load(ctx context.Context) (*model.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, data, err := s.readCurrent()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: no artifact at %s", common.ErrModelNotLoaded, s.Path())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	m, _, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode artifact %s: %w", path, err)
	}

	slog.Debug("Loaded model artifact", "path", path, "assignees", len(m.Assignees))
	return m, nil
}

// Current returns the metadata of the active artifact.
func (s *Store) Current(_ context.Context) (*Info, error) {
	info, err := readMetadata(s.metaPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: no active artifact", common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact metadata: %w", err)
	}
	info.Path = s.Path()
	return info, nil
}

// List returns archived artifacts, newest first. Entries with unreadable
// metadata are skipped.
func (s *Store) List(_ context.Context) ([]Info, error) {
	entries, err := os.ReadDir(s.archiveDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	infos := make([]Info, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), metaExt) {
			continue
		}

		info, err := readMetadata(filepath.Join(s.archiveDir, entry.Name()))
		if err != nil {
			slog.Debug("skipping unreadable artifact metadata", "file", entry.Name(), "error", err)
			continue
		}
		info.Path = s.archivePath(info.ID, info.Compressed)
		infos = append(infos, *info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})

	return infos, nil
}

// Restore republishes an archived artifact as the active one. Its digest is
// verified before anything on disk changes.
func (s *Store) Restore(ctx context.Context, id string) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateID(id); err != nil {
		return nil, err
	}

	info, err := readMetadata(filepath.Join(s.archiveDir, id+metaExt))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: artifact %q", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact metadata: %w", err)
	}

	data, err := os.ReadFile(s.archivePath(id, info.Compressed))
	if err != nil {
		return nil, fmt.Errorf("failed to read archived artifact %q: %w", id, err)
	}

	_, raw, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("archived artifact %q is corrupt: %w", id, err)
	}
	if info.Digest != "" && Digest(raw) != info.Digest {
		return nil, fmt.Errorf("%w: archived artifact %q digest mismatch", common.ErrInvalidModel, id)
	}

	if err := s.archiveCurrent(); err != nil {
		return nil, fmt.Errorf("failed to archive active artifact: %w", err)
	}
	if err := s.publish(raw, info); err != nil {
		return nil, err
	}

	s.prune(ctx)

	slog.Info("Restored model artifact", "id", id, "digest", info.Digest)
	return info, nil
}

// Delete removes an archived artifact.
func (s *Store) Delete(_ context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	metaPath := filepath.Join(s.archiveDir, id+metaExt)
	info, err := readMetadata(metaPath)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: artifact %q", common.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to load artifact metadata: %w", err)
	}

	if err := os.Remove(s.archivePath(id, info.Compressed)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove archived artifact: %w", err)
	}
	if err := os.Remove(metaPath); err != nil {
		return fmt.Errorf("failed to remove artifact metadata: %w", err)
	}
	return nil
}

func (s *Store) publish(raw []byte, info *Info) error {
	data := raw
	if s.compress {
		data = Compress(raw)
	}

	path := s.Path()
	if err := writeAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}

	// Drop a leftover copy in the other encoding so Load never sees it.
	if err := os.Remove(s.altPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to remove stale artifact", "path", s.altPath(), "error", err)
	}

	info.Path = path
	info.Size = int64(len(data))
	info.Compressed = s.compress
	return writeMetadata(s.metaPath(), info)
}

// archiveCurrent copies the active artifact into the archive under its own
// ID. Artifacts written without a metadata sidecar get a synthetic one.
func (s *Store) archiveCurrent() error {
	path, data, err := s.readCurrent()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	info, err := readMetadata(s.metaPath())
	if err != nil || validateID(info.ID) != nil {
		info, err = legacyInfo(path, data)
		if err != nil {
			return err
		}
	}
	info.Compressed = IsCompressed(data)
	info.Size = int64(len(data))

	if err := writeAtomic(s.archivePath(info.ID, info.Compressed), data); err != nil {
		return err
	}
	return writeMetadata(filepath.Join(s.archiveDir, info.ID+metaExt), info)
}

func (s *Store) prune(ctx context.Context) {
	if s.keep <= 0 {
		return
	}

	infos, err := s.List(ctx)
	if err != nil {
		slog.Warn("failed to list artifacts for pruning", "error", err)
		return
	}

	for _, info := range infos[min(s.keep, len(infos)):] {
		if err := s.Delete(ctx, info.ID); err != nil {
			slog.Warn("failed to prune artifact", "id", info.ID, "error", err)
			continue
		}
		slog.Debug("Pruned archived artifact", "id", info.ID)
	}
}

func (s *Store) readCurrent() (string, []byte, error) {
	for _, path := range []string{s.Path(), s.altPath()} {
		data, err := os.ReadFile(path) // #nosec G304 - path comes from configuration
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return path, nil, err
		}
		return path, data, nil
	}
	return "", nil, fs.ErrNotExist
}

func (s *Store) altPath() string {
	if s.compress {
		return s.base
	}
	return s.base + zstdExt
}

func (s *Store) metaPath() string {
	return strings.TrimSuffix(s.base, jsonExt) + metaExt
}

func (s *Store) archivePath(id string, compressed bool) string {
	name := id + jsonExt
	if compressed {
		name += zstdExt
	}
	return filepath.Join(s.archiveDir, name)
}

func legacyInfo(path string, data []byte) (*Info, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat artifact: %w", err)
	}

	info := &Info{
		ID:        "legacy-" + st.ModTime().UTC().Format("20060102T150405"),
		CreatedAt: st.ModTime().UTC(),
	}
	if m, raw, err := Decode(data); err == nil {
		info.TrainedAt = m.Metadata.TrainedAt
		info.Version = m.Metadata.Version
		info.Digest = Digest(raw)
		info.Assignees = len(m.Assignees)
		info.VocabularySize = m.VocabularySize()
		info.TrainingSamples = m.TrainingSamples()
	}
	return info, nil
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return ErrInvalidID
	}
	return nil
}

func writeMetadata(path string, info *Info) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal artifact metadata: %w", err)
	}
	return writeAtomic(path, data)
}

func readMetadata(path string) (*Info, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is built from a validated ID
	if err != nil {
		return nil, err
	}

	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("corrupt artifact metadata %s: %w", path, err)
	}
	return &info, nil
}

// writeAtomic writes data to a temp file in the target directory, syncs it,
// and renames it into place so readers never observe a partial file.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		if rmErr := os.Remove(tmpPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			slog.Error("failed to remove temporary file", "path", tmpPath, "error", rmErr)
		}
	}

	if _, err := tmp.Write(data); err != nil {
		if closeErr := tmp.Close(); closeErr != nil {
			slog.Error("failed to close temporary file after write error", "error", closeErr)
		}
		cleanup()
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		if closeErr := tmp.Close(); closeErr != nil {
			slog.Error("failed to close temporary file after sync error", "error", closeErr)
		}
		cleanup()
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

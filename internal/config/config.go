package config

import (
	"fmt"
	"strings"

	"github.com/Veraticus/dispatch/internal/common"
	"github.com/spf13/viper"
)

// Corpus sources.
const (
	SourceCSV = "csv"
	SourceDB  = "db"
)

// Viper keys.
const (
	KeyServerAddr      = "server.addr"
	KeyModelPath       = "model.path"
	KeyModelCompress   = "model.compress"
	KeyCorpusCSV       = "corpus.csv"
	KeyCorpusSource    = "corpus.source"
	KeyDatabasePath    = "database.path"
	KeyRetrainSchedule = "retrain.schedule"
	KeyRetrainAttempts = "retrain.attempts"
	KeyRetrainTimezone = "retrain.timezone"
	KeyArtifactsKeep   = "artifacts.keep"
	KeyLoggingLevel    = "logging.level"
	KeyLoggingFormat   = "logging.format"
)

const defaultDataDir = "$HOME/.local/share/dispatch"

// Config is the resolved application configuration.
type Config struct {
	Server    ServerConfig
	Model     ModelConfig
	Corpus    CorpusConfig
	Database  DatabaseConfig
	Retrain   RetrainConfig
	Logging   LoggingConfig
	Artifacts ArtifactsConfig
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Addr string
}

// ModelConfig locates the published artifact.
type ModelConfig struct {
	Path     string
	Compress bool
}

// CorpusConfig selects where training records come from.
type CorpusConfig struct {
	CSV    string
	Source string
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string
}

// RetrainConfig drives scheduled retraining. An empty Schedule disables it.
type RetrainConfig struct {
	Schedule string
	Timezone string
	Attempts int
}

// ArtifactsConfig bounds the artifact archive. Keep 0 retains every entry.
type ArtifactsConfig struct {
	Keep int
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string
	Format string
}

// EnvKeyReplacer maps nested keys to environment names, so model.path is
// read from DISPATCH_MODEL_PATH.
func EnvKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyServerAddr, ":5000")
	v.SetDefault(KeyModelPath, defaultDataDir+"/ticket_assigner.json")
	v.SetDefault(KeyModelCompress, false)
	v.SetDefault(KeyCorpusCSV, "data/issues_mock.csv")
	v.SetDefault(KeyCorpusSource, SourceCSV)
	v.SetDefault(KeyDatabasePath, defaultDataDir+"/dispatch.db")
	v.SetDefault(KeyRetrainSchedule, "")
	v.SetDefault(KeyRetrainTimezone, "")
	v.SetDefault(KeyRetrainAttempts, 3)
	v.SetDefault(KeyArtifactsKeep, 5)
	v.SetDefault(KeyLoggingLevel, "info")
	v.SetDefault(KeyLoggingFormat, "console")
}

// Load resolves configuration from v, applying defaults for unset keys and
// expanding paths.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{
		Server: ServerConfig{
			Addr: v.GetString(KeyServerAddr),
		},
		Model: ModelConfig{
			Path:     ExpandPath(v.GetString(KeyModelPath)),
			Compress: v.GetBool(KeyModelCompress),
		},
		Corpus: CorpusConfig{
			CSV:    ExpandPath(v.GetString(KeyCorpusCSV)),
			Source: strings.ToLower(strings.TrimSpace(v.GetString(KeyCorpusSource))),
		},
		Database: DatabaseConfig{
			Path: ExpandPath(v.GetString(KeyDatabasePath)),
		},
		Retrain: RetrainConfig{
			Schedule: strings.TrimSpace(v.GetString(KeyRetrainSchedule)),
			Timezone: v.GetString(KeyRetrainTimezone),
			Attempts: v.GetInt(KeyRetrainAttempts),
		},
		Artifacts: ArtifactsConfig{
			Keep: v.GetInt(KeyArtifactsKeep),
		},
		Logging: LoggingConfig{
			Level:  v.GetString(KeyLoggingLevel),
			Format: v.GetString(KeyLoggingFormat),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	switch c.Corpus.Source {
	case SourceCSV:
		if c.Corpus.CSV == "" {
			return fmt.Errorf("%w: %s is required when %s is %q", common.ErrMissingConfig, KeyCorpusCSV, KeyCorpusSource, SourceCSV)
		}
	case SourceDB:
	default:
		return fmt.Errorf("%w: %s must be %q or %q, got %q", common.ErrInvalidConfig, KeyCorpusSource, SourceCSV, SourceDB, c.Corpus.Source)
	}

	if c.Model.Path == "" {
		return fmt.Errorf("%w: %s", common.ErrMissingConfig, KeyModelPath)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("%w: %s", common.ErrMissingConfig, KeyDatabasePath)
	}
	if c.Retrain.Attempts < 1 {
		return fmt.Errorf("%w: %s must be at least 1", common.ErrInvalidConfig, KeyRetrainAttempts)
	}
	if c.Artifacts.Keep < 0 {
		return fmt.Errorf("%w: %s must not be negative", common.ErrInvalidConfig, KeyArtifactsKeep)
	}
	return nil
}

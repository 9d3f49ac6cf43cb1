package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Veraticus/dispatch/internal/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.Server.Addr)
	assert.Equal(t, "/home/tester/.local/share/dispatch/ticket_assigner.json", cfg.Model.Path)
	assert.False(t, cfg.Model.Compress)
	assert.Equal(t, "data/issues_mock.csv", cfg.Corpus.CSV)
	assert.Equal(t, SourceCSV, cfg.Corpus.Source)
	assert.Equal(t, "/home/tester/.local/share/dispatch/dispatch.db", cfg.Database.Path)
	assert.Empty(t, cfg.Retrain.Schedule)
	assert.Equal(t, 3, cfg.Retrain.Attempts)
	assert.Equal(t, 5, cfg.Artifacts.Keep)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: "127.0.0.1:8080"
model:
  path: /srv/models/assigner.json
  compress: true
corpus:
  source: DB
retrain:
  schedule: "0 3 * * *"
  attempts: 5
artifacts:
  keep: 0
`), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, "/srv/models/assigner.json", cfg.Model.Path)
	assert.True(t, cfg.Model.Compress)
	assert.Equal(t, SourceDB, cfg.Corpus.Source)
	assert.Equal(t, "0 3 * * *", cfg.Retrain.Schedule)
	assert.Equal(t, 5, cfg.Retrain.Attempts)
	assert.Equal(t, 0, cfg.Artifacts.Keep)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("DISPATCH_MODEL_PATH", "/tmp/env-model.json")
	t.Setenv("DISPATCH_RETRAIN_ATTEMPTS", "7")

	v := viper.New()
	v.SetEnvPrefix("DISPATCH")
	v.SetEnvKeyReplacer(EnvKeyReplacer())
	v.AutomaticEnv()

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env-model.json", cfg.Model.Path)
	assert.Equal(t, 7, cfg.Retrain.Attempts)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		wantErr error
		set     map[string]any
		name    string
	}{
		{name: "unknown source", set: map[string]any{KeyCorpusSource: "s3"}, wantErr: common.ErrInvalidConfig},
		{name: "csv source without path", set: map[string]any{KeyCorpusCSV: ""}, wantErr: common.ErrMissingConfig},
		{name: "no model path", set: map[string]any{KeyModelPath: ""}, wantErr: common.ErrMissingConfig},
		{name: "no database path", set: map[string]any{KeyDatabasePath: ""}, wantErr: common.ErrMissingConfig},
		{name: "zero attempts", set: map[string]any{KeyRetrainAttempts: 0}, wantErr: common.ErrInvalidConfig},
		{name: "negative keep", set: map[string]any{KeyArtifactsKeep: -1}, wantErr: common.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			for k, val := range tt.set {
				v.Set(k, val)
			}
			_, err := Load(v)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoad_DBSourceIgnoresCSVPath(t *testing.T) {
	v := viper.New()
	v.Set(KeyCorpusSource, SourceDB)
	v.Set(KeyCorpusCSV, "")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, SourceDB, cfg.Corpus.Source)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("DISPATCH_TEST_DIR", "/opt/dispatch")

	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "~", want: home},
		{in: "~/models/a.json", want: filepath.Join(home, "models/a.json")},
		{in: "$DISPATCH_TEST_DIR/a.json", want: "/opt/dispatch/a.json"},
		{in: "relative/path.csv", want: "relative/path.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}

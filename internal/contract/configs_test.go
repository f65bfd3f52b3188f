package contract

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/openpreserve/flint/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessAndValidate(t *testing.T) {
	policyDir := t.TempDir()

	tests := []struct {
		name        string
		input       *ConfigRawInput
		expectError bool
	}{
		{
			name:  "valid minimal config",
			input: &ConfigRawInput{InputPathStr: "."},
		},
		{
			name: "valid full config",
			input: &ConfigRawInput{
				InputPathStr: ".",
				Output:       "TSV",
				Format:       "pdf, epub",
				PolicyDir:    policyDir,
				Timeout:      "30s",
				Isolation:    "process",
				Workers:      2,
				LogLevel:     "debug",
				Exclude:      "tmp/, *.bak",
			},
		},
		{name: "invalid output", input: &ConfigRawInput{Output: "html"}, expectError: true},
		{name: "parquet without file", input: &ConfigRawInput{Output: "parquet"}, expectError: true},
		{name: "invalid timeout", input: &ConfigRawInput{Timeout: "soon"}, expectError: true},
		{name: "negative timeout", input: &ConfigRawInput{Timeout: "-1s"}, expectError: true},
		{name: "invalid isolation", input: &ConfigRawInput{Isolation: "thread"}, expectError: true},
		{name: "too many workers", input: &ConfigRawInput{Workers: MaxWorkers + 1}, expectError: true},
		{name: "invalid log level", input: &ConfigRawInput{LogLevel: "chatty"}, expectError: true},
		{name: "missing policy dir", input: &ConfigRawInput{PolicyDir: filepath.Join(policyDir, "nope")}, expectError: true},
		{name: "missing input", input: &ConfigRawInput{InputPathStr: filepath.Join(policyDir, "nope.pdf")}, expectError: true},
		{name: "invalid debounce", input: &ConfigRawInput{Debounce: "later"}, expectError: true},
		{name: "invalid cache backend", input: &ConfigRawInput{CacheBackend: "redis"}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			err := ProcessAndValidate(context.Background(), cfg, tt.input)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, filepath.IsAbs(cfg.InputPath))
		})
	}
}

func TestProcessAndValidateDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(context.Background(), cfg, &ConfigRawInput{}))

	assert.Equal(t, schema.XMLOut, cfg.Output)
	assert.Equal(t, schema.ProcessIsolation, cfg.Isolation)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, time.Duration(0), cfg.Timeout)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, schema.SQLiteBackend, cfg.CacheBackend)
	assert.Equal(t, schema.NoneBackend, cfg.HistoryBackend)
	assert.Equal(t, DefaultDebounce, cfg.Debounce)
	assert.Equal(t, DefaultExcludes, cfg.Excludes)
	assert.True(t, cfg.UseColors)
}

func TestProcessPolicyInputs(t *testing.T) {
	cfg := &Config{}
	input := &ConfigRawInput{
		Format:        "pdf,mobi",
		PolicyFilters: map[string][]string{"pdf": {"No encryption"}},
	}
	require.NoError(t, ProcessAndValidate(context.Background(), cfg, input))

	assert.Equal(t, []string{"PDF", "MOBI"}, cfg.Formats)
	assert.Equal(t, []string{"No encryption"}, cfg.PolicyFilters["PDF"])
	assert.True(t, cfg.WantsFormat("pdf"))
	assert.False(t, cfg.WantsFormat("EPUB"))
}

func TestValidateDatabaseConnectionString(t *testing.T) {
	tests := []struct {
		name    string
		backend schema.DatabaseBackend
		connStr string
		wantErr bool
	}{
		{"sqlite empty", schema.SQLiteBackend, "", false},
		{"none empty", schema.NoneBackend, "", false},
		{"mysql valid", schema.MySQLBackend, "root:pw@tcp(localhost:3306)/flint", false},
		{"mysql empty", schema.MySQLBackend, "", true},
		{"mysql missing tcp", schema.MySQLBackend, "root:pw@localhost/flint", true},
		{"postgres valid", schema.PostgreSQLBackend, "host=localhost port=5432 dbname=flint", false},
		{"postgres missing dbname", schema.PostgreSQLBackend, "host=localhost", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDatabaseConnectionString(tt.backend, tt.connStr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateBackendConfigsRejectsSharedSQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flint.db")
	cfg := &Config{}
	err := validateBackendConfigs(cfg, &ConfigRawInput{
		CacheBackend:     "sqlite",
		CacheDBConnect:   path,
		HistoryBackend:   "sqlite",
		HistoryDBConnect: path,
	})
	assert.Error(t, err)
}

func TestConfigClone(t *testing.T) {
	cfg := &Config{
		Formats:       []string{"PDF"},
		Excludes:      []string{"tmp/"},
		PolicyFilters: map[string][]string{"PDF": {"a"}},
	}
	clone := cfg.Clone()
	clone.Formats[0] = "EPUB"
	clone.Excludes[0] = "x/"
	clone.PolicyFilters["PDF"][0] = "b"

	assert.Equal(t, "PDF", cfg.Formats[0])
	assert.Equal(t, "tmp/", cfg.Excludes[0])
	assert.Equal(t, "a", cfg.PolicyFilters["PDF"][0])
}

func TestConfigParams(t *testing.T) {
	cfg := &Config{InputPath: "/books", Output: schema.XMLOut, Isolation: schema.ProcessIsolation, Workers: 3, PolicyDir: "/policies"}
	params := cfg.ConfigParams()
	assert.Equal(t, "/books", params["input"])
	assert.Equal(t, "process", params["isolation"])
	assert.Equal(t, 3, params["workers"])
	assert.Equal(t, "/policies", params["policy_dir"])
	assert.NotContains(t, params, "formats")
}

func TestProcessProfilingConfig(t *testing.T) {
	profile := &ProfileConfig{}
	require.NoError(t, ProcessProfilingConfig(profile, ""))
	assert.False(t, profile.Enabled)

	prefix := filepath.Join(t.TempDir(), "flint")
	require.NoError(t, ProcessProfilingConfig(profile, prefix))
	assert.True(t, profile.Enabled)
	assert.Equal(t, prefix, profile.Prefix)

	err := ProcessProfilingConfig(profile, filepath.Join(t.TempDir(), "missing", "flint"))
	assert.ErrorContains(t, err, "does not exist")
}

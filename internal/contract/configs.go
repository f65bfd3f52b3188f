package contract

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/openpreserve/flint/schema"
)

// Default values for configuration.
const (
	DefaultOutput    = schema.XMLOut
	DefaultIsolation = schema.ProcessIsolation
	DefaultDebounce  = 500 * time.Millisecond
	MaxWorkers       = 256
)

// DefaultWorkers is the default number of concurrent workers to use.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// DefaultExcludes are skipped when walking an input directory.
var DefaultExcludes = []string{
	".DS_Store", "Thumbs.db",
	".part", ".crdownload", ".tmp",
	".git/", ".svn/",
}

// Config holds the runtime configuration for a check run.
// This struct is the "final, validated" config.
type Config struct {
	InputPath  string
	OutputFile string
	Output     schema.OutputMode
	Width      int // Terminal width override (0 = auto-detect)
	UseColors  bool

	Formats       []string            // Restrict checks to these formats (empty = all)
	PolicyDir     string              // Directory holding <FORMAT>-policy.properties files
	PolicyFilters map[string][]string // Inline pattern filters keyed by format name

	Timeout     time.Duration // Per-task timeout (0 = supervisor default)
	Isolation   schema.IsolationMode
	Workers     int
	FailOnError bool
	MetricsFile string
	Excludes    []string
	LogLevel    slog.Level

	Schedule string        // Cron schedule for periodic rescans in watch mode
	Debounce time.Duration // Debounce for file events in watch mode

	CacheBackend   schema.DatabaseBackend
	CacheDBConnect string // Please use env var as this is plaintext

	HistoryBackend   schema.DatabaseBackend
	HistoryDBConnect string // Please use env var as this is plaintext
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// This is set manually from positional args, so no tag
	InputPathStr string

	// --- Fields from rootCmd.PersistentFlags() ---
	Output           string `mapstructure:"output"`
	OutputFile       string `mapstructure:"output-file"`
	Width            int    `mapstructure:"width"`
	Color            string `mapstructure:"color"`
	LogLevel         string `mapstructure:"log-level"`
	CacheBackend     string `mapstructure:"cache-backend"`
	CacheDBConnect   string `mapstructure:"cache-db-connect"`
	HistoryBackend   string `mapstructure:"history-backend"`
	HistoryDBConnect string `mapstructure:"history-db-connect"`

	// --- Fields from checkCmd.Flags() ---
	Format      string `mapstructure:"format"`
	PolicyDir   string `mapstructure:"policy-dir"`
	Timeout     string `mapstructure:"timeout"`
	Isolation   string `mapstructure:"isolation"`
	Workers     int    `mapstructure:"workers"`
	FailOnError bool   `mapstructure:"fail-on-error"`
	MetricsFile string `mapstructure:"metrics-file"`
	Exclude     string `mapstructure:"exclude"`

	// --- Fields from watchCmd.Flags() ---
	Schedule string `mapstructure:"schedule"`
	Debounce string `mapstructure:"debounce"`

	// --- Inline pattern filters from config file ---
	PolicyFilters map[string][]string `mapstructure:"policy-filters"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Excludes = slices.Clone(c.Excludes)
	clone.Formats = slices.Clone(c.Formats)
	if c.PolicyFilters != nil {
		clone.PolicyFilters = make(map[string][]string, len(c.PolicyFilters))
		for format, patterns := range c.PolicyFilters {
			clone.PolicyFilters[format] = slices.Clone(patterns)
		}
	}
	return &clone
}

// WantsFormat reports whether the named format is enabled by the config.
func (c *Config) WantsFormat(name string) bool {
	if len(c.Formats) == 0 {
		return true
	}
	return slices.Contains(c.Formats, schema.NormalizeFormat(name))
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(_ context.Context, cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processRunControls(cfg, input); err != nil {
		return err
	}
	if err := processPolicyInputs(cfg, input); err != nil {
		return err
	}
	if err := processWatchInputs(cfg, input); err != nil {
		return err
	}
	return resolveInputPath(cfg, input)
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateBackendConfigs validates cache and history backend configurations.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	cfg.CacheBackend = schema.DatabaseBackend(strings.ToLower(input.CacheBackend))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = schema.SQLiteBackend
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.CacheBackend]; !ok {
		return fmt.Errorf("invalid cache backend '%s'. must be sqlite, mysql, postgresql, none", input.CacheBackend)
	}
	cfg.CacheDBConnect = input.CacheDBConnect
	if err := ValidateDatabaseConnectionString(cfg.CacheBackend, cfg.CacheDBConnect); err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	cfg.HistoryBackend = schema.DatabaseBackend(strings.ToLower(input.HistoryBackend))
	if cfg.HistoryBackend == "" {
		cfg.HistoryBackend = schema.NoneBackend
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.HistoryBackend]; !ok {
		return fmt.Errorf("invalid history backend '%s'. must be sqlite, mysql, postgresql, none", input.HistoryBackend)
	}
	cfg.HistoryDBConnect = input.HistoryDBConnect
	if err := ValidateDatabaseConnectionString(cfg.HistoryBackend, cfg.HistoryDBConnect); err != nil {
		return fmt.Errorf("history: %w", err)
	}

	// Cache and history must not share one SQLite file since each owns its schema.
	if cfg.CacheBackend == schema.SQLiteBackend && cfg.HistoryBackend == schema.SQLiteBackend {
		cachePath := cfg.CacheDBConnect
		if cachePath == "" {
			cachePath = GetDBFilePath()
		}
		historyPath := cfg.HistoryDBConnect
		if historyPath == "" {
			historyPath = GetHistoryDBFilePath()
		}
		if cachePath == historyPath {
			return fmt.Errorf("cache and history storage must use different SQLite database files. Both resolve to %q", cachePath)
		}
	}
	return nil
}

// validateSimpleInputs processes and validates output and storage fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width

	colors, err := ParseBoolString(defaultString(input.Color, "yes"))
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	cfg.Output = schema.OutputMode(strings.ToLower(defaultString(input.Output, string(DefaultOutput))))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be xml, text, json, yaml, csv, tsv, parquet", input.Output)
	}
	if cfg.Output == schema.ParquetOut && cfg.OutputFile == "" {
		return fmt.Errorf("parquet output requires --output-file")
	}

	level, err := ParseLogLevel(input.LogLevel)
	if err != nil {
		return err
	}
	cfg.LogLevel = level

	return validateBackendConfigs(cfg, input)
}

// processRunControls handles timeout, isolation, workers and excludes.
func processRunControls(cfg *Config, input *ConfigRawInput) error {
	if input.Timeout != "" {
		d, err := time.ParseDuration(input.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout '%s': %w", input.Timeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("timeout must be positive (received %s)", input.Timeout)
		}
		cfg.Timeout = d
	}

	cfg.Isolation = schema.IsolationMode(strings.ToLower(defaultString(input.Isolation, string(DefaultIsolation))))
	if _, ok := schema.ValidIsolationModes[cfg.Isolation]; !ok {
		return fmt.Errorf("invalid isolation '%s'. must be goroutine, process", input.Isolation)
	}

	switch {
	case input.Workers == 0:
		cfg.Workers = DefaultWorkers
	case input.Workers < 0 || input.Workers > MaxWorkers:
		return fmt.Errorf("workers must be between 1 and %d (received %d)", MaxWorkers, input.Workers)
	default:
		cfg.Workers = input.Workers
	}

	cfg.FailOnError = input.FailOnError
	cfg.MetricsFile = input.MetricsFile

	cfg.Excludes = slices.Clone(DefaultExcludes)
	cfg.Excludes = append(cfg.Excludes, splitList(input.Exclude)...)
	return nil
}

// processPolicyInputs handles the format allow-list and pattern filter sources.
func processPolicyInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.Formats = nil
	for _, f := range splitList(input.Format) {
		cfg.Formats = append(cfg.Formats, schema.NormalizeFormat(f))
	}

	cfg.PolicyDir = input.PolicyDir
	if cfg.PolicyDir != "" {
		info, err := os.Stat(cfg.PolicyDir)
		if err != nil {
			return fmt.Errorf("policy directory: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("policy directory %q is not a directory", cfg.PolicyDir)
		}
	}

	cfg.PolicyFilters = nil
	if len(input.PolicyFilters) > 0 {
		cfg.PolicyFilters = make(map[string][]string, len(input.PolicyFilters))
		for format, patterns := range input.PolicyFilters {
			cfg.PolicyFilters[schema.NormalizeFormat(format)] = slices.Clone(patterns)
		}
	}
	return nil
}

// processWatchInputs handles the watch schedule and debounce.
func processWatchInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.Schedule = strings.TrimSpace(input.Schedule)
	cfg.Debounce = DefaultDebounce
	if input.Debounce != "" {
		d, err := time.ParseDuration(input.Debounce)
		if err != nil {
			return fmt.Errorf("invalid debounce '%s': %w", input.Debounce, err)
		}
		cfg.Debounce = d
	}
	return nil
}

// resolveInputPath makes the positional input path absolute and checks it exists.
func resolveInputPath(cfg *Config, input *ConfigRawInput) error {
	if input.InputPathStr == "" {
		return nil
	}
	abs, err := filepath.Abs(input.InputPathStr)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("input path: %w", err)
	}
	cfg.InputPath = filepath.Clean(abs)
	return nil
}

// ParseLogLevel maps debug|info|warn|error to a slog level. Empty means info.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s'. must be debug, info, warn, error", s)
	}
	return level, nil
}

// ConfigParams returns the config values recorded with each history run.
func (c *Config) ConfigParams() map[string]any {
	params := map[string]any{
		"input":     c.InputPath,
		"output":    string(c.Output),
		"isolation": string(c.Isolation),
		"timeout":   c.Timeout.String(),
		"workers":   c.Workers,
	}
	if c.PolicyDir != "" {
		params["policy_dir"] = c.PolicyDir
	}
	if len(c.Formats) > 0 {
		params["formats"] = slices.Clone(c.Formats)
	}
	if len(c.PolicyFilters) > 0 {
		filters := make(map[string][]string, len(c.PolicyFilters))
		maps.Copy(filters, c.PolicyFilters)
		params["policy_filters"] = filters
	}
	return params
}

func splitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func defaultString(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// ProfileConfig holds CPU and heap profiling settings.
type ProfileConfig struct {
	Enabled bool
	Prefix  string
}

// ProcessProfilingConfig enables profiling when a file prefix is given.
func ProcessProfilingConfig(profile *ProfileConfig, prefix string) error {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		profile.Enabled = false
		profile.Prefix = ""
		return nil
	}
	if dir := filepath.Dir(prefix); dir != "." {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return fmt.Errorf("profile directory %q does not exist", dir)
		}
	}
	profile.Enabled = true
	profile.Prefix = prefix
	return nil
}

// Package cmd defines the command-line interface for flint.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openpreserve/flint/core"
	"github.com/openpreserve/flint/internal/contract"
	"github.com/openpreserve/flint/schema"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(policyCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(workerCmd)

	policyCmd.AddCommand(policyCreateCmd)
	policyCmd.AddCommand(policyPatternsCmd)

	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatusCmd)

	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyStatusCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("output", string(contract.DefaultOutput), "Output format: xml or text or json or yaml or csv or tsv or parquet")
	rootCmd.PersistentFlags().StringP("output-file", "o", "", "Optional path to write output to (a directory receives results.xml)")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug or info or warn or error")
	rootCmd.PersistentFlags().String("format", "", "Comma-separated list of formats to check (default: all)")
	rootCmd.PersistentFlags().StringP("policy-dir", "p", "", "Directory holding <FORMAT>-policy.properties pattern filters")
	rootCmd.PersistentFlags().String("timeout", "", "Per-task timeout, e.g. 600s (default: 10m)")
	rootCmd.PersistentFlags().String("isolation", string(contract.DefaultIsolation), "Task isolation: goroutine or process")
	rootCmd.PersistentFlags().Int("workers", contract.DefaultWorkers, "Number of concurrent workers")
	rootCmd.PersistentFlags().String("exclude", "", "Comma-separated list of path prefixes or patterns to ignore")
	rootCmd.PersistentFlags().String("cache-backend", string(schema.SQLiteBackend), "Policy cache backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("cache-db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("history-backend", "", "Run history backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("history-db-connect", "", "Database connection string for run history (must differ from cache-db-connect)")
	rootCmd.PersistentFlags().String("profile", "", "Enable profiling and write profiles to files with this prefix")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of checkCmd to Viper
	checkCmd.Flags().Bool("fail-on-error", false, "Exit non-zero when any file does not pass")
	checkCmd.Flags().String("metrics-file", "", "Write supervisor metrics in Prometheus text format to this file")
	if err := viper.BindPFlags(checkCmd.Flags()); err != nil {
		contract.LogFatal("Error binding check flags", err)
	}

	// Bind all flags of watchCmd to Viper
	watchCmd.Flags().String("schedule", "", "Cron schedule for full rescans, e.g. '@hourly'")
	watchCmd.Flags().String("debounce", contract.DefaultDebounce.String(), "Quiet period before changed files are checked")
	if err := viper.BindPFlags(watchCmd.Flags()); err != nil {
		contract.LogFatal("Error binding watch flags", err)
	}

	// Bind all flags of historyMigrateCmd to Viper
	historyMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(historyMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding history migrate flags", err)
	}

	// The worker reads its own flags; they are not part of the user config.
	workerCmd.Flags().String(core.WorkerFormatFlag, "", "Format of the task")
	workerCmd.Flags().StringArray(core.WorkerPatternFlag, nil, "Retained policy pattern (repeatable)")
	workerCmd.Flags().Bool(core.WorkerFilteredFlag, false, "Apply the retained patterns as a filter")
	workerCmd.Flags().String(workerTaskFlag, "", "Name of the task to run")
}

// Package main benchmarks the flint CLI over a set of document corpora.
// Each corpus is checked with both isolation modes, first without the policy
// cache, then with a cold and a warm SQLite cache. Timings are written as CSV.
//
// Prerequisites:
// - flint binary installed and available in PATH
// - One folder per corpus under the base directory
//
// Usage: go run ./benchmark [corpus-base-dir]
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// BenchmarkResult holds the timings of one corpus and isolation mode.
type BenchmarkResult struct {
	Corpus      string
	Isolation   string
	NoCacheTime string
	ColdTime    string
	WarmTime    string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	CorpusBase  string
	Timeout     time.Duration
	Workers     int
	NoCacheRuns int
	CacheRuns   int
	Isolations  []string
}

func main() {
	if len(os.Args) != 2 {
		fmt.Printf("Usage: %s [corpus-base-dir]\n", os.Args[0])
		os.Exit(1)
	}

	config := BenchmarkConfig{
		CorpusBase:  os.Args[1],
		Timeout:     10 * time.Minute,
		Workers:     8,
		NoCacheRuns: 3,
		CacheRuns:   4,
		Isolations:  []string{"goroutine", "process"},
	}

	corpora, err := listCorpora(config.CorpusBase)
	if err != nil {
		fmt.Printf("Prerequisites check failed: %v\n", err)
		os.Exit(1)
	}

	results := runBenchmarks(config, corpora)

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}
	printSummary(results)
}

// listCorpora checks that flint is installed and returns the corpus folders.
func listCorpora(base string) ([]string, error) {
	if _, err := exec.LookPath("flint"); err != nil {
		return nil, fmt.Errorf("flint binary not found in PATH")
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, err
	}
	var corpora []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			corpora = append(corpora, e.Name())
		}
	}
	if len(corpora) == 0 {
		return nil, fmt.Errorf("no corpus folders found in %s", base)
	}
	return corpora, nil
}

// runBenchmarks executes every corpus with every isolation mode.
func runBenchmarks(config BenchmarkConfig, corpora []string) []BenchmarkResult {
	fmt.Printf("Starting benchmark: %d corpora, %v timeout, %d workers, no-cache: %d runs, cache: %d runs\n",
		len(corpora), config.Timeout, config.Workers, config.NoCacheRuns, config.CacheRuns)

	var results []BenchmarkResult
	for _, corpus := range corpora {
		for _, isolation := range config.Isolations {
			results = append(results, runBenchmarkSuite(config, corpus, isolation))
		}
	}
	return results
}

// runBenchmarkSuite runs the no-cache and cache phases for one corpus.
func runBenchmarkSuite(config BenchmarkConfig, corpus, isolation string) BenchmarkResult {
	fmt.Printf("Checking %s with %s isolation\n", corpus, isolation)

	cacheDB := filepath.Join(os.TempDir(), "flint_benchmark_cache.db")
	_ = os.Remove(cacheDB)
	defer func() { _ = os.Remove(cacheDB) }()

	_, noCache := runPhase(config, corpus, isolation, []string{"--cache-backend", "none"}, config.NoCacheRuns)
	cold, warm := runPhase(config, corpus, isolation, []string{"--cache-backend", "sqlite", "--cache-db-connect", cacheDB}, config.CacheRuns)

	fmt.Printf("  No-cache average: %s, Cold time: %s, Warm average: %s\n", noCache, cold, warm)
	return BenchmarkResult{
		Corpus:      corpus,
		Isolation:   isolation,
		NoCacheTime: noCache,
		ColdTime:    cold,
		WarmTime:    warm,
	}
}

// runPhase runs flint numRuns times and returns the first run and the average
// of every run after it. Failed or timed out runs are left out.
func runPhase(config BenchmarkConfig, corpus, isolation string, cacheArgs []string, numRuns int) (first, avg string) {
	out := filepath.Join(os.TempDir(), "flint_benchmark_results.xml")
	defer func() { _ = os.Remove(out) }()

	args := []string{
		"check", filepath.Join(config.CorpusBase, corpus),
		"--isolation", isolation,
		"--workers", fmt.Sprint(config.Workers),
		"--output-file", out,
	}
	args = append(args, cacheArgs...)

	var times []float64
	for range numRuns {
		if d, ok := timeRun(config.Timeout, args); ok {
			times = append(times, d.Seconds())
		}
	}

	first, avg = "TIMEOUT", "TIMEOUT"
	if len(times) > 0 {
		first = fmt.Sprintf("%.3fs", times[0])
		avg = first
	}
	if len(times) > 1 {
		var sum float64
		for _, t := range times[1:] {
			sum += t
		}
		avg = fmt.Sprintf("%.3fs", sum/float64(len(times)-1))
	}
	return first, avg
}

// timeRun runs flint once and reports whether it completed a check.
func timeRun(timeout time.Duration, args []string) (time.Duration, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	output, err := exec.CommandContext(ctx, "flint", args...).CombinedOutput()
	if err != nil || !strings.Contains(string(output), "Checked ") {
		return 0, false
	}
	return time.Since(start), true
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	filename := filepath.Join(os.TempDir(), fmt.Sprintf("flint_benchmark_%s.csv", time.Now().Format("20060102_150405")))

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"corpus", "isolation", "no_cache_avg", "cold_time", "warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range results {
		if err := writer.Write([]string{r.Corpus, r.Isolation, r.NoCacheTime, r.ColdTime, r.WarmTime}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")
	for _, isolation := range []string{"goroutine", "process"} {
		fmt.Printf("Isolation %s:\n", isolation)
		for _, r := range results {
			if r.Isolation == isolation {
				fmt.Printf("  %-16s: No-cache: %s, Cold: %s, Warm: %s\n", r.Corpus, r.NoCacheTime, r.ColdTime, r.WarmTime)
			}
		}
	}
}

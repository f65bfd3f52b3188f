package core

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/openpreserve/flint/internal/contract"
	"github.com/openpreserve/flint/internal/outwriter"
	"github.com/openpreserve/flint/schema"
)

// LoadReport reads an XML report written by a previous check.
func LoadReport(path string) ([]*schema.CheckResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	results, err := schema.ParseReport(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return results, nil
}

// ExecuteReport re-reads a report and writes it with the configured output mode.
func ExecuteReport(_ context.Context, cfg *contract.Config, path string) error {
	start := time.Now()
	results, err := LoadReport(path)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteResults(results, cfg, time.Since(start))
}

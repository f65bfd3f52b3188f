package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/openpreserve/flint/internal/contract"
	"github.com/openpreserve/flint/internal/formats"
	"github.com/openpreserve/flint/internal/policy"
	"github.com/openpreserve/flint/internal/registry"
)

// CreatePolicyProperties writes the editable pattern filter file of a format
// into dir and returns its path.
func CreatePolicyProperties(reg *registry.Registry, format, dir string) (string, error) {
	if reg == nil {
		reg = registry.Default()
	}
	v, err := reg.New(format, formats.Options{})
	if err != nil {
		return "", err
	}
	pm, err := formats.PropertiesMap(v)
	if err != nil {
		return "", err
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, policy.FilterFileName(v.Name()))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := policy.WriteProperties(f, pm); err != nil {
		_ = f.Close()
		return "", err
	}
	return path, f.Close()
}

// ExecutePolicyCreate is the entry point of `policy create`.
func ExecutePolicyCreate(_ context.Context, format, dir string) error {
	path, err := CreatePolicyProperties(nil, format, dir)
	if err != nil {
		return err
	}
	fmt.Printf("Created %s\n", path)
	return nil
}

// PolicyPatterns returns the retained pattern names of a format under the
// filter configured for it.
func PolicyPatterns(reg *registry.Registry, cfg *contract.Config, format string) ([]string, error) {
	if reg == nil {
		reg = registry.Default()
	}
	filter, err := ResolveFilter(cfg.PolicyDir, cfg.PolicyFilters, format)
	if err != nil {
		return nil, err
	}
	v, err := reg.New(format, formats.Options{Filter: filter})
	if err != nil {
		return nil, err
	}
	p := v.Policy()
	if p == nil {
		return []string{}, nil
	}
	return p.PatternNames()
}

// ExecutePolicyPatterns is the entry point of `policy patterns`.
func ExecutePolicyPatterns(_ context.Context, cfg *contract.Config, format string, w io.Writer) error {
	names, err := PolicyPatterns(nil, cfg, format)
	if err != nil {
		return err
	}
	for _, n := range names {
		if _, err := fmt.Fprintln(w, n); err != nil {
			return err
		}
	}
	return nil
}

package policy

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/magiconair/properties"

	"github.com/openpreserve/flint/schema"
)

// FilterFileName returns the pattern filter file name for a format.
func FilterFileName(format string) string {
	return schema.NormalizeFormat(format) + "-policy.properties"
}

// LoadPatternFilter reads a properties file of `pattern name = true|false` lines.
// Only names set to true are retained.
func LoadPatternFilter(r io.Reader) (PatternFilter, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return PatternFilter{}, err
	}
	loader := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	props, err := loader.LoadBytes(data)
	if err != nil {
		return PatternFilter{}, err
	}
	var names []string
	for _, key := range props.Keys() {
		if strings.EqualFold(strings.TrimSpace(props.GetString(key, "")), "true") {
			names = append(names, key)
		}
	}
	return NewPatternFilter(names...), nil
}

// LoadPatternFilterFile loads the filter file of a format from dir. A missing
// file yields NoFilter and found == false.
func LoadPatternFilterFile(dir, format string) (filter PatternFilter, found bool, err error) {
	f, err := os.Open(filepath.Join(dir, FilterFileName(format)))
	if errors.Is(err, fs.ErrNotExist) {
		return NoFilter, false, nil
	}
	if err != nil {
		return NoFilter, false, err
	}
	defer func() { _ = f.Close() }()

	filter, err = LoadPatternFilter(f)
	if err != nil {
		return NoFilter, true, fmt.Errorf("%s: %w", f.Name(), err)
	}
	return filter, true, nil
}

// writableKey reports whether the properties writer keeps key intact. It
// escapes spaces and colons but not '=' or a leading comment marker.
func writableKey(key string) bool {
	return key != "" && !strings.Contains(key, "=") && !strings.HasPrefix(key, "#") && !strings.HasPrefix(key, "!")
}

// WriteProperties writes an editable filter file listing every pattern of the
// map with its rules and asserts as comments, each pattern enabled.
func WriteProperties(w io.Writer, pm *PolicyMap) error {
	props := properties.NewProperties()
	props.DisableExpansion = true
	for _, p := range pm.Patterns() {
		if !writableKey(p) {
			return fmt.Errorf("pattern %q cannot be written as a properties key", p)
		}
		if _, _, err := props.Set(p, "true"); err != nil {
			return err
		}
		comments := []string{" Pattern: " + p}
		for _, ctx := range pm.Rules(p) {
			comments = append(comments, "# Rule (context): "+ctx)
			for _, test := range pm.Asserts(p, ctx) {
				comments = append(comments, "# Assert (test): "+test)
			}
		}
		props.SetComments(p, comments)
	}

	header := "# This properties file is used to filter for specific asserts in the policy validation.\n" +
		"# All asserts that are set to 'true' will be evaluated.\n\n"
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	_, err := props.WriteComment(w, "#", properties.UTF8)
	return err
}

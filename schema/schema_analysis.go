package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FixedResultKeys are the metadata keys that lead every ToMap output.
var FixedResultKeys = []string{FilenameKey, FormatKey, VersionKey, ResultKey, TimeTakenKey}

// Field is one ordered key/value pair of a flattened result.
type Field struct {
	Key   string
	Value string
}

// CheckResult is the per-file outcome: file metadata plus an ordered set of categories.
// A nil category is a placeholder for a category that was expected but never produced.
type CheckResult struct {
	Filename  string
	Format    string
	Version   string
	TimeTaken *time.Duration

	order      []string
	categories map[string]*Category
}

// NewCheckResult creates a result pre-seeded with nil placeholders for the expected
// category names. Their order becomes the serialization order.
func NewCheckResult(filename, format, version string, expected ...string) *CheckResult {
	r := &CheckResult{
		Filename:   filename,
		Format:     format,
		Version:    version,
		categories: make(map[string]*Category, len(expected)),
	}
	for _, name := range expected {
		r.put(name, nil)
	}
	return r
}

func (r *CheckResult) put(name string, c *Category) {
	if r.categories == nil {
		r.categories = make(map[string]*Category)
	}
	if _, ok := r.categories[name]; !ok {
		r.order = append(r.order, name)
	}
	r.categories[name] = c
}

// Add merges a category by name, overwriting any existing entry.
func (r *CheckResult) Add(c *Category) {
	if c == nil {
		return
	}
	r.put(c.Name(), c)
}

// AddAll merges every category of the mapping.
func (r *CheckResult) AddAll(m *CategoryMap) {
	for _, c := range m.Categories() {
		r.Add(c)
	}
}

// SetTimeTaken records the total time spent checking the file.
func (r *CheckResult) SetTimeTaken(d time.Duration) {
	r.TimeTaken = &d
}

// Category returns the named category. The boolean reports whether the name is known;
// the category itself may still be a nil placeholder.
func (r *CheckResult) Category(name string) (*Category, bool) {
	c, ok := r.categories[name]
	return c, ok
}

// CategoryNames returns all category names in order, placeholders included.
func (r *CheckResult) CategoryNames() []string {
	return append([]string(nil), r.order...)
}

// Categories returns the populated categories in order.
func (r *CheckResult) Categories() []*Category {
	out := make([]*Category, 0, len(r.order))
	for _, name := range r.order {
		if c := r.categories[name]; c != nil {
			out = append(out, c)
		}
	}
	return out
}

// IsErroneous is true when every child is nil or erroneous.
func (r *CheckResult) IsErroneous() bool {
	for _, c := range r.categories {
		if c != nil && !c.IsErroneous() {
			return false
		}
	}
	return true
}

// IsHappy returns nil when erroneous. Otherwise it is false if any populated,
// non-erroneous category failed. Nil placeholders do not count against it.
func (r *CheckResult) IsHappy() *bool {
	if r.IsErroneous() {
		return nil
	}
	for _, c := range r.categories {
		if c == nil || c.IsErroneous() {
			continue
		}
		if happy := c.IsHappy(); happy != nil && !*happy {
			return boolPtr(false)
		}
	}
	return boolPtr(true)
}

// Result derives the serialized status of the whole file.
func (r *CheckResult) Result() ResultStatus {
	return resultOf(r.IsHappy())
}

// TimeTakenMillis returns the check time in milliseconds, 0 when unknown.
func (r *CheckResult) TimeTakenMillis() int64 {
	if r.TimeTaken == nil {
		return 0
	}
	return r.TimeTaken.Milliseconds()
}

// ToMap flattens the result into the fixed metadata fields followed by one
// field per category holding its result ("" for placeholders).
func (r *CheckResult) ToMap() []Field {
	timeTaken := ""
	if r.TimeTaken != nil {
		timeTaken = strconv.FormatInt(r.TimeTakenMillis(), 10)
	}
	fields := []Field{
		{Key: FilenameKey, Value: r.Filename},
		{Key: FormatKey, Value: r.Format},
		{Key: VersionKey, Value: r.Version},
		{Key: ResultKey, Value: string(r.Result())},
		{Key: TimeTakenKey, Value: timeTaken},
	}
	for _, name := range r.order {
		value := ""
		if c := r.categories[name]; c != nil {
			value = string(c.Result())
		}
		fields = append(fields, Field{Key: name, Value: value})
	}
	return fields
}

func (r *CheckResult) String() string {
	var cats []string
	for _, c := range r.Categories() {
		cats = append(cats, c.String())
	}
	return fmt.Sprintf("%s: v%s, %s, %s, time: %d ms",
		r.Format, r.Version, r.Filename, strings.Join(cats, ", "), r.TimeTakenMillis())
}

// CheckView is the flattened, serializable form of a check.
type CheckView struct {
	Name       string       `json:"name" yaml:"name"`
	Result     ResultStatus `json:"result" yaml:"result"`
	ErrorCount *int         `json:"errorCount,omitempty" yaml:"errorCount,omitempty"`
}

// CategoryView is the flattened, serializable form of a category.
type CategoryView struct {
	Name   string       `json:"name" yaml:"name"`
	Result ResultStatus `json:"result" yaml:"result"`
	Checks []CheckView  `json:"checks" yaml:"checks"`
}

// ResultView is the flattened, serializable form of a CheckResult with all results computed.
type ResultView struct {
	Filename    string         `json:"filename" yaml:"filename"`
	Format      string         `json:"format" yaml:"format"`
	Version     string         `json:"version" yaml:"version"`
	Result      ResultStatus   `json:"result" yaml:"result"`
	TimeTakenMs *int64         `json:"timeTakenMs,omitempty" yaml:"timeTakenMs,omitempty"`
	Categories  []CategoryView `json:"categories" yaml:"categories"`
}

// View computes the serializable form of the result. Placeholders are skipped.
func (r *CheckResult) View() ResultView {
	v := ResultView{
		Filename:    r.Filename,
		Format:      r.Format,
		Version:     r.Version,
		Result:      r.Result(),
		Categories:  []CategoryView{},
	}
	if r.TimeTaken != nil {
		ms := r.TimeTakenMillis()
		v.TimeTakenMs = &ms
	}
	for _, c := range r.Categories() {
		cv := CategoryView{Name: c.Name(), Result: c.Result(), Checks: []CheckView{}}
		for _, check := range c.Checks() {
			cv.Checks = append(cv.Checks, CheckView{Name: check.Name(), Result: check.Result(), ErrorCount: check.ErrorCount()})
		}
		v.Categories = append(v.Categories, cv)
	}
	return v
}

// MarshalJSON implements json.Marshaler.
func (r *CheckResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.View())
}

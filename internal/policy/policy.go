// Package policy compiles schematron policies into pattern maps and reconciles
// validation reports against them.
package policy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// SchematronNS is the namespace of ISO schematron schemas.
const SchematronNS = "http://purl.oclc.org/dsdl/schematron"

// ErrMalformedSchema is returned when a policy schema cannot be parsed.
var ErrMalformedSchema = errors.New("malformed policy schema")

var (
	patternExpr = xpath.MustCompile("//*[local-name()='pattern']")
	ruleExpr    = xpath.MustCompile(".//*[local-name()='rule']")
	assertExpr  = xpath.MustCompile(".//*[local-name()='assert']")
	nsExpr      = xpath.MustCompile("//*[local-name()='ns']")
)

// PatternFilter is an immutable allow-list of pattern names.
// The zero value allows every pattern.
type PatternFilter struct {
	names  map[string]struct{}
	active bool
}

// NoFilter allows every pattern.
var NoFilter = PatternFilter{}

// NewPatternFilter creates a filter that retains only the named patterns.
// A filter created with no names retains nothing.
func NewPatternFilter(names ...string) PatternFilter {
	f := PatternFilter{names: make(map[string]struct{}, len(names)), active: true}
	for _, n := range names {
		f.names[n] = struct{}{}
	}
	return f
}

// Active reports whether the filter restricts anything.
func (f PatternFilter) Active() bool { return f.active }

// Allows reports whether the pattern is retained.
func (f PatternFilter) Allows(name string) bool {
	if !f.active {
		return true
	}
	_, ok := f.names[name]
	return ok
}

// Names returns the sorted allow-list, nil for an inactive filter.
func (f PatternFilter) Names() []string {
	if !f.active {
		return nil
	}
	out := make([]string, 0, len(f.names))
	for n := range f.names {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Key is a canonical identity of the filter, used in cache keys.
func (f PatternFilter) Key() string {
	if !f.active {
		return "*"
	}
	return "[" + strings.Join(f.Names(), "\x1f") + "]"
}

// PolicyMap is an ordered pattern -> rule context -> assert test set.
// Patterns keep document order, rule contexts and asserts are sorted.
type PolicyMap struct {
	order    []string
	patterns map[string]map[string][]string
}

// NewPolicyMap creates an empty map.
func NewPolicyMap() *PolicyMap {
	return &PolicyMap{patterns: make(map[string]map[string][]string)}
}

// Add merges the tests under pattern and rule context.
func (m *PolicyMap) Add(pattern, context string, tests ...string) {
	rules := m.ensurePattern(pattern)
	set := rules[context]
	for _, t := range tests {
		if i, found := slices.BinarySearch(set, t); !found {
			set = slices.Insert(set, i, t)
		}
	}
	rules[context] = set
}

func (m *PolicyMap) ensurePattern(pattern string) map[string][]string {
	if m.patterns == nil {
		m.patterns = make(map[string]map[string][]string)
	}
	rules, ok := m.patterns[pattern]
	if !ok {
		rules = make(map[string][]string)
		m.patterns[pattern] = rules
		m.order = append(m.order, pattern)
	}
	return rules
}

// Merge adds every entry of other, keeping this map's pattern order first.
func (m *PolicyMap) Merge(other *PolicyMap) {
	for _, p := range other.Patterns() {
		m.ensurePattern(p)
		for _, ctx := range other.Rules(p) {
			m.Add(p, ctx, other.Asserts(p, ctx)...)
		}
	}
}

// Patterns returns the pattern names in document order.
func (m *PolicyMap) Patterns() []string {
	if m == nil {
		return nil
	}
	return slices.Clone(m.order)
}

// Rules returns the sorted rule contexts of a pattern.
func (m *PolicyMap) Rules(pattern string) []string {
	if m == nil {
		return nil
	}
	rules := m.patterns[pattern]
	out := make([]string, 0, len(rules))
	for ctx := range rules {
		out = append(out, ctx)
	}
	slices.Sort(out)
	return out
}

// Asserts returns the sorted assert tests of a rule.
func (m *PolicyMap) Asserts(pattern, context string) []string {
	if m == nil {
		return nil
	}
	return slices.Clone(m.patterns[pattern][context])
}

// Len returns the number of patterns.
func (m *PolicyMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

type ruleJSON struct {
	Context string   `json:"context"`
	Asserts []string `json:"asserts"`
}

type patternJSON struct {
	Name  string     `json:"name"`
	Rules []ruleJSON `json:"rules"`
}

// MarshalJSON implements json.Marshaler.
func (m *PolicyMap) MarshalJSON() ([]byte, error) {
	out := make([]patternJSON, 0, m.Len())
	for _, p := range m.Patterns() {
		pj := patternJSON{Name: p, Rules: []ruleJSON{}}
		for _, ctx := range m.Rules(p) {
			pj.Rules = append(pj.Rules, ruleJSON{Context: ctx, Asserts: m.Asserts(p, ctx)})
		}
		out = append(out, pj)
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *PolicyMap) UnmarshalJSON(data []byte) error {
	var raw []patternJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = *NewPolicyMap()
	for _, p := range raw {
		m.ensurePattern(p.Name)
		for _, r := range p.Rules {
			m.Add(p.Name, r.Context, r.Asserts...)
		}
	}
	return nil
}

// rule is one schematron rule in document order.
type rule struct {
	context string
	tests   []string
}

// pattern is one schematron pattern in document order.
type pattern struct {
	name  string
	rules []rule
}

// parsedSchema is a schematron document reduced to what flint evaluates.
type parsedSchema struct {
	patterns   []pattern
	namespaces map[string]string
}

// parseSchema walks pattern/rule/assert elements in the schematron namespace,
// skipping patterns the filter does not retain.
func parseSchema(r io.Reader, filter PatternFilter) (*parsedSchema, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSchema, err)
	}

	ps := &parsedSchema{namespaces: map[string]string{}}
	for _, n := range xmlquery.QuerySelectorAll(doc, nsExpr) {
		if n.NamespaceURI != SchematronNS {
			continue
		}
		if prefix := n.SelectAttr("prefix"); prefix != "" {
			ps.namespaces[prefix] = n.SelectAttr("uri")
		}
	}

	for _, pn := range xmlquery.QuerySelectorAll(doc, patternExpr) {
		if pn.NamespaceURI != SchematronNS {
			continue
		}
		name := pn.SelectAttr("name")
		if name == "" {
			name = pn.SelectAttr("id")
		}
		if !filter.Allows(name) {
			continue
		}
		p := pattern{name: name}
		for _, rn := range xmlquery.QuerySelectorAll(pn, ruleExpr) {
			if rn.NamespaceURI != SchematronNS {
				continue
			}
			rl := rule{context: rn.SelectAttr("context")}
			for _, an := range xmlquery.QuerySelectorAll(rn, assertExpr) {
				if an.NamespaceURI != SchematronNS {
					continue
				}
				rl.tests = append(rl.tests, an.SelectAttr("test"))
			}
			p.rules = append(p.rules, rl)
		}
		ps.patterns = append(ps.patterns, p)
	}
	return ps, nil
}

func (ps *parsedSchema) policyMap() *PolicyMap {
	m := NewPolicyMap()
	for _, p := range ps.patterns {
		m.ensurePattern(p.name)
		for _, r := range p.rules {
			m.Add(p.name, r.context, r.tests...)
		}
	}
	return m
}

// CompilePolicyMap compiles a schematron schema into a PolicyMap. Patterns the
// filter does not retain are dropped and duplicate pattern names merge.
func CompilePolicyMap(r io.Reader, filter PatternFilter) (*PolicyMap, error) {
	ps, err := parseSchema(r, filter)
	if err != nil {
		return nil, err
	}
	return ps.policyMap(), nil
}

// CompilePatternNames returns the retained pattern names in document order.
func CompilePatternNames(r io.Reader, filter PatternFilter) ([]string, error) {
	m, err := CompilePolicyMap(r, filter)
	if err != nil {
		return nil, err
	}
	return m.Patterns(), nil
}

// PatternNames is CompilePatternNames over in-memory schema bytes.
func PatternNames(schemaBytes []byte, filter PatternFilter) ([]string, error) {
	return CompilePatternNames(bytes.NewReader(schemaBytes), filter)
}

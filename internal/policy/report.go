package policy

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// SVRLNS is the namespace of schematron validation report documents.
const SVRLNS = "http://purl.oclc.org/dsdl/svrl"

// ErrMalformedReport is returned when a validation report cannot be read.
var ErrMalformedReport = errors.New("malformed validation report")

// FailureReport maps pattern -> assert test -> number of failed occurrences.
type FailureReport map[string]map[string]int

// Add records one failed occurrence.
func (r FailureReport) Add(pattern, test string) {
	tests, ok := r[pattern]
	if !ok {
		tests = make(map[string]int)
		r[pattern] = tests
	}
	tests[test]++
}

// Count returns the recorded failures. The boolean is false when none were recorded.
func (r FailureReport) Count(pattern, test string) (int, bool) {
	n, ok := r[pattern][test]
	return n, ok && n > 0
}

// Total returns the number of failed occurrences across all patterns.
func (r FailureReport) Total() int {
	total := 0
	for _, tests := range r {
		for _, n := range tests {
			total += n
		}
	}
	return total
}

// ReportSource produces the failures of one document against a schema.
type ReportSource interface {
	FailureReport(ctx context.Context, schema []byte, filter PatternFilter) (FailureReport, error)
}

// SVRLReport reads failures from an SVRL document produced by an external
// schematron processor.
type SVRLReport struct {
	Data []byte
}

var _ ReportSource = SVRLReport{}

// FailureReport implements ReportSource. Failed asserts are attributed to the
// most recent active pattern.
func (s SVRLReport) FailureReport(ctx context.Context, _ []byte, filter PatternFilter) (FailureReport, error) {
	report := FailureReport{}
	dec := xml.NewDecoder(bytes.NewReader(s.Data))
	current := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return report, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedReport, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Space != SVRLNS {
			continue
		}
		switch start.Name.Local {
		case "active-pattern":
			current = attr(start, "name")
			if current == "" {
				current = attr(start, "id")
			}
		case "failed-assert":
			if filter.Allows(current) {
				report.Add(current, attr(start, "test"))
			}
		}
	}
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// DocumentReport evaluates the schema's asserts directly against an XML document.
// Within a pattern each node is handled by the first rule whose context matches it.
type DocumentReport struct {
	Doc    *xmlquery.Node
	Logger *slog.Logger
}

var _ ReportSource = (*DocumentReport)(nil)

// ParseDocument parses the XML document that asserts are evaluated against.
func ParseDocument(r io.Reader) (*DocumentReport, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &DocumentReport{Doc: doc}, nil
}

// FailureReport implements ReportSource.
func (d *DocumentReport) FailureReport(ctx context.Context, schemaBytes []byte, filter PatternFilter) (FailureReport, error) {
	ps, err := parseSchema(bytes.NewReader(schemaBytes), filter)
	if err != nil {
		return nil, err
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	report := FailureReport{}
	for _, p := range ps.patterns {
		fired := make(map[*xmlquery.Node]struct{})
		for _, r := range p.rules {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			nodes, err := selectContext(d.Doc, r.context, ps.namespaces)
			if err != nil {
				return nil, fmt.Errorf("pattern %q: rule context %q: %w", p.name, r.context, err)
			}
			tests := make([]*xpath.Expr, len(r.tests))
			for i, t := range r.tests {
				if tests[i], err = xpath.CompileWithNS(t, ps.namespaces); err != nil {
					return nil, fmt.Errorf("pattern %q: assert %q: %w", p.name, t, err)
				}
			}
			for _, n := range nodes {
				if _, done := fired[n]; done {
					continue
				}
				fired[n] = struct{}{}
				for i, expr := range tests {
					if !truthy(expr.Evaluate(xmlquery.CreateXPathNavigator(n))) {
						report.Add(p.name, r.tests[i])
					}
				}
			}
		}
	}
	logger.Debug("policy.DocumentReport", "patterns", len(ps.patterns), "failures", report.Total())
	return report, nil
}

// selectContext returns the nodes matched by a rule context. Relative contexts
// match anywhere in the document, as schematron match patterns do.
func selectContext(doc *xmlquery.Node, match string, ns map[string]string) ([]*xmlquery.Node, error) {
	var parts []string
	for _, alt := range splitUnion(match) {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			continue
		}
		if !strings.HasPrefix(alt, "/") {
			alt = "//" + alt
		}
		parts = append(parts, alt)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty context")
	}
	expr, err := xpath.CompileWithNS(strings.Join(parts, " | "), ns)
	if err != nil {
		return nil, err
	}
	return xmlquery.QuerySelectorAll(doc, expr), nil
}

// splitUnion splits a match pattern on top-level '|' operators.
func splitUnion(s string) []string {
	var out []string
	depth := 0
	var quote rune
	start := 0
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '[' || r == '(':
			depth++
		case r == ']' || r == ')':
			depth--
		case r == '|' && depth == 0:
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}

// truthy applies XPath boolean() conversion to an evaluation result.
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case string:
		return t != ""
	case *xpath.NodeIterator:
		return t.MoveNext()
	default:
		return v != nil
	}
}

package schema

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ReportRoot is the root element name of a flint report.
const ReportRoot = "flint"

// xmlEscaper escapes the five predefined XML entities.
var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"'", "&apos;",
	`"`, "&quot;",
)

// EscapeXML escapes markup-significant characters of an attribute value.
func EscapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

// WriteXML writes the check element.
func (c Check) WriteXML(w io.Writer, shift string) error {
	count := ""
	if c.errorCount != nil {
		count = fmt.Sprintf(" errorCount='%d'", *c.errorCount)
	}
	_, err := fmt.Fprintf(w, "%s<check name='%s' result='%s'%s/>\n", shift, EscapeXML(c.name), c.Result(), count)
	return err
}

// WriteXML writes the category element and its checks.
func (c *Category) WriteXML(w io.Writer, shift, indent string) error {
	if _, err := fmt.Fprintf(w, "%s<checkCategory name='%s' result='%s'>\n", shift, EscapeXML(c.name), c.Result()); err != nil {
		return err
	}
	for _, check := range c.Checks() {
		if err := check.WriteXML(w, shift+indent); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%s</checkCategory>\n", shift)
	return err
}

// WriteXML writes the checkedFile element. Placeholders are skipped and every
// result attribute is computed at write time. totalCheckTime is left out when
// the time is unknown.
func (r *CheckResult) WriteXML(w io.Writer, shift, indent string) error {
	checkTime := ""
	if r.TimeTaken != nil {
		checkTime = fmt.Sprintf(" totalCheckTime='%d'", r.TimeTakenMillis())
	}
	if _, err := fmt.Fprintf(w, "%s<checkedFile name='%s' result='%s' format='%s' version='%s'%s>\n",
		shift, EscapeXML(r.Filename), r.Result(), EscapeXML(r.Format), EscapeXML(r.Version), checkTime); err != nil {
		return err
	}
	for _, c := range r.Categories() {
		if err := c.WriteXML(w, shift+indent, indent); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%s</checkedFile>\n", shift)
	return err
}

// WriteReport writes a complete report document for the given results.
func WriteReport(w io.Writer, results []*CheckResult) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "<?xml version='1.0' encoding='utf-8'?>\n<%s>\n", ReportRoot); err != nil {
		return err
	}
	for _, r := range results {
		if err := r.WriteXML(bw, "    ", "    "); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(bw, "</%s>\n", ReportRoot); err != nil {
		return err
	}
	return bw.Flush()
}

type xmlReport struct {
	XMLName xml.Name  `xml:"flint"`
	Files   []xmlFile `xml:"checkedFile"`
}

type xmlFile struct {
	Name           string        `xml:"name,attr"`
	Result         string        `xml:"result,attr"`
	Format         string        `xml:"format,attr"`
	Version        string        `xml:"version,attr"`
	TotalCheckTime string        `xml:"totalCheckTime,attr"`
	Categories     []xmlCategory `xml:"checkCategory"`
}

type xmlCategory struct {
	Name   string     `xml:"name,attr"`
	Result string     `xml:"result,attr"`
	Checks []xmlCheck `xml:"check"`
}

type xmlCheck struct {
	Name       string `xml:"name,attr"`
	Result     string `xml:"result,attr"`
	ErrorCount *int   `xml:"errorCount,attr"`
}

// ParseReport reads a report written by WriteReport. Category and file results are
// re-derived from the parsed check outcomes.
func ParseReport(r io.Reader) ([]*CheckResult, error) {
	var doc xmlReport
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	results := make([]*CheckResult, 0, len(doc.Files))
	for _, f := range doc.Files {
		res := NewCheckResult(f.Name, f.Format, f.Version)
		if ms, err := strconv.ParseInt(f.TotalCheckTime, 10, 64); err == nil {
			res.SetTimeTaken(time.Duration(ms) * time.Millisecond)
		}
		for _, xc := range f.Categories {
			cat := NewCategory(xc.Name)
			for _, check := range xc.Checks {
				outcome, err := OutcomeFromResult(ResultStatus(check.Result))
				if err != nil {
					return nil, fmt.Errorf("check %q in %q: %w", check.Name, xc.Name, err)
				}
				cat.Add(NewCheck(check.Name, outcome, check.ErrorCount))
			}
			res.Add(cat)
		}
		results = append(results, res)
	}
	return results, nil
}

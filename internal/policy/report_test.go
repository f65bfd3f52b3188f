package policy

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSVRL = `<?xml version="1.0"?>
<svrl:schematron-output xmlns:svrl="http://purl.oclc.org/dsdl/svrl">
  <svrl:active-pattern name="No encryption"/>
  <svrl:fired-rule context="book"/>
  <svrl:failed-assert test="not(encrypt)" location="/book"><svrl:text>encrypted</svrl:text></svrl:failed-assert>
  <svrl:failed-assert test="not(encrypt)" location="/book[2]"/>
  <svrl:active-pattern id="images"/>
  <svrl:failed-assert test="@alt" location="/book/image[1]"/>
  <other:failed-assert xmlns:other="urn:other" test="ignored"/>
</svrl:schematron-output>`

func TestSVRLReport(t *testing.T) {
	report, err := SVRLReport{Data: []byte(sampleSVRL)}.FailureReport(context.Background(), nil, NoFilter)
	require.NoError(t, err)

	n, ok := report.Count("No encryption", "not(encrypt)")
	assert.True(t, ok)
	assert.Equal(t, 2, n)

	n, ok = report.Count("images", "@alt")
	assert.True(t, ok)
	assert.Equal(t, 1, n)

	_, ok = report.Count("images", "ignored")
	assert.False(t, ok)
	assert.Equal(t, 3, report.Total())
}

func TestSVRLReportFilter(t *testing.T) {
	report, err := SVRLReport{Data: []byte(sampleSVRL)}.FailureReport(context.Background(), nil, NewPatternFilter("images"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Total())
}

func TestSVRLReportMalformed(t *testing.T) {
	_, err := SVRLReport{Data: []byte(`<svrl:schematron-output xmlns:svrl="http://purl.oclc.org/dsdl/svrl"><a></b>`)}.
		FailureReport(context.Background(), nil, NoFilter)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedReport))
}

func TestSVRLReportCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := SVRLReport{Data: []byte(sampleSVRL)}.FailureReport(ctx, nil, NoFilter)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDocumentReport(t *testing.T) {
	doc, err := ParseDocument(strings.NewReader(`<book pages="0">
  <encrypt/>
  <image alt="cover" width="100"/>
  <image width="9000"/>
</book>`))
	require.NoError(t, err)

	report, err := doc.FailureReport(context.Background(), readSample(t), NoFilter)
	require.NoError(t, err)

	n, ok := report.Count("No encryption", "not(encrypt)")
	assert.True(t, ok)
	assert.Equal(t, 1, n)
	n, ok = report.Count("No encryption", "@pages > 0")
	assert.True(t, ok)
	assert.Equal(t, 1, n)
	n, ok = report.Count("images", "@alt")
	assert.True(t, ok)
	assert.Equal(t, 1, n)
	n, ok = report.Count("images", "@width < 5000")
	assert.True(t, ok)
	assert.Equal(t, 1, n)
}

func TestDocumentReportFirstRuleWins(t *testing.T) {
	schemaDoc := `<schema xmlns="http://purl.oclc.org/dsdl/schematron">
  <pattern name="p">
    <rule context="item[@special]"><assert test="false()"/></rule>
    <rule context="item"><assert test="@id"/></rule>
  </pattern>
</schema>`
	doc, err := ParseDocument(strings.NewReader(`<list><item special="1"/><item/><item id="x"/></list>`))
	require.NoError(t, err)

	report, err := doc.FailureReport(context.Background(), []byte(schemaDoc), NoFilter)
	require.NoError(t, err)

	n, _ := report.Count("p", "false()")
	assert.Equal(t, 1, n)
	n, _ = report.Count("p", "@id")
	assert.Equal(t, 1, n)
}

func TestDocumentReportBadContext(t *testing.T) {
	schemaDoc := `<schema xmlns="http://purl.oclc.org/dsdl/schematron">
  <pattern name="p"><rule context="a[["><assert test="x"/></rule></pattern>
</schema>`
	doc, err := ParseDocument(strings.NewReader(`<a/>`))
	require.NoError(t, err)

	_, err = doc.FailureReport(context.Background(), []byte(schemaDoc), NoFilter)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `pattern "p"`)
}

func TestSplitUnion(t *testing.T) {
	assert.Equal(t, []string{"a", " b[@x='|']", " c"}, splitUnion("a| b[@x='|']| c"))
	assert.Equal(t, []string{"a[b|c]"}, splitUnion("a[b|c]"))
}

func TestTruthy(t *testing.T) {
	assert.True(t, truthy(true))
	assert.False(t, truthy(0.0))
	assert.True(t, truthy(2.0))
	assert.False(t, truthy(""))
	assert.True(t, truthy("x"))
	assert.False(t, truthy(nil))
}

package formats

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpreserve/flint/internal/policy"
	"github.com/openpreserve/flint/internal/supervisor"
	"github.com/openpreserve/flint/schema"
)

const fakeSchema = `<schema xmlns="http://purl.oclc.org/dsdl/schematron">
  <pattern name="P1"><rule context="doc"><assert test="@ok = 'true'"/></rule></pattern>
</schema>`

type fakeFormat struct {
	Base
	doc   string
	fixed func(context.Context, string) (*schema.Category, error)
}

func newFake(opts Options, doc string) *fakeFormat {
	fixed := policy.NewPolicyMap()
	fixed.Add("fixed", "fixed", "isFine")
	f := &fakeFormat{doc: doc}
	f.Base = NewBase(Descriptor{
		Name:           "FAKE",
		MimeTypes:      []string{"application/x-fake"},
		Extensions:     []string{".fake"},
		Fixed:          fixed,
		PolicyCategory: "policy",
		Schema:         []byte(fakeSchema),
	}, opts)
	f.fixed = func(context.Context, string) (*schema.Category, error) {
		return schema.NewCategory("fixed", schema.PassedCheck("isFine")), nil
	}
	return f
}

func (f *fakeFormat) ValidationResult(ctx context.Context, file string) *schema.CheckResult {
	return f.Validate(ctx, f, file)
}

func (f *fakeFormat) Tasks() []supervisor.Task {
	return []supervisor.Task{
		f.FixedTask("fixed", f.fixed),
		f.PolicyTask(func(context.Context, string) (policy.ReportSource, error) {
			return policy.ParseDocument(strings.NewReader(f.doc))
		}),
	}
}

func TestHasExtension(t *testing.T) {
	assert.True(t, HasExtension("a/b/c.PDF", ".pdf"))
	assert.True(t, HasExtension("c.azw3", ".mobi", ".azw3"))
	assert.False(t, HasExtension("pdf", ".pdf"))
	assert.False(t, HasExtension("c.pdf.part", ".pdf"))
}

func TestRunPassed(t *testing.T) {
	f := newFake(Options{}, `<doc ok="true"/>`)
	res := f.ValidationResult(context.Background(), "/some/dir/file.fake")

	assert.Equal(t, "file.fake", res.Filename)
	assert.Equal(t, "FAKE", res.Format)
	assert.Equal(t, Version, res.Version)
	assert.Equal(t, []string{"fixed", "policy", "P1"}, res.CategoryNames())
	assert.Equal(t, schema.PassedResult, res.Result())
	require.NotNil(t, res.TimeTaken)
}

func TestRunPolicyFailure(t *testing.T) {
	res := newFake(Options{}, `<doc ok="false"/>`).ValidationResult(context.Background(), "file.fake")
	p1, _ := res.Category("P1")
	require.NotNil(t, p1)
	check, _ := p1.Get("@ok = 'true'")
	require.NotNil(t, check.ErrorCount())
	assert.Equal(t, 1, *check.ErrorCount())
	assert.Equal(t, schema.FailedResult, res.Result())
}

func TestRunDegradesFaults(t *testing.T) {
	f := newFake(Options{Supervisor: &supervisor.Supervisor{Timeout: 50 * time.Millisecond}}, `<doc`)
	f.fixed = func(context.Context, string) (*schema.Category, error) {
		return nil, errors.New("tool crashed")
	}
	res := f.ValidationResult(context.Background(), "file.fake")

	for _, name := range []string{"fixed", "policy"} {
		cat, _ := res.Category(name)
		require.NotNil(t, cat, name)
		check, ok := cat.Get(name)
		require.True(t, ok)
		assert.Equal(t, schema.Fail, check.Outcome())
		assert.Nil(t, check.ErrorCount())
	}
	p1, ok := res.Category("P1")
	assert.True(t, ok)
	assert.Nil(t, p1)
}

func TestFixedTaskFiltered(t *testing.T) {
	f := newFake(Options{Filter: policy.NewPatternFilter("P1")}, `<doc ok="true"/>`)
	res := f.ValidationResult(context.Background(), "file.fake")
	fixed, ok := res.Category("fixed")
	assert.True(t, ok)
	assert.Nil(t, fixed)
}

func TestFindTask(t *testing.T) {
	f := newFake(Options{}, "")
	task, ok := FindTask(f, "policy")
	require.True(t, ok)
	assert.Equal(t, "policy", task.Name())
	_, ok = FindTask(f, "nope")
	assert.False(t, ok)
}

func TestPropertiesMap(t *testing.T) {
	pm, err := PropertiesMap(newFake(Options{Filter: policy.NewPatternFilter()}, ""))
	require.NoError(t, err)
	assert.Equal(t, []string{"fixed", "P1"}, pm.Patterns())
	assert.Equal(t, []string{"isFine"}, pm.Asserts("fixed", "fixed"))
}

func TestCanCheck(t *testing.T) {
	f := newFake(Options{}, "")
	assert.True(t, f.CanCheck("x", "Application/X-Fake"))
	assert.True(t, f.CanCheck("x.fake", "application/octet-stream"))
	assert.False(t, f.CanCheck("x", ""))
}

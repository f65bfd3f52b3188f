// Package epub checks EPUB containers for well-formedness, DRM and policy conformance.
package epub

import (
	"bytes"
	"context"
	_ "embed"

	"github.com/openpreserve/flint/internal/formats"
	"github.com/openpreserve/flint/internal/policy"
	"github.com/openpreserve/flint/internal/supervisor"
	"github.com/openpreserve/flint/schema"
)

// Name is the format name.
const Name = "EPUB"

// Category names.
const (
	WellFormed       = "Well formed"
	NoDRMRightsFile  = "DRM check looking for rights file"
	PolicyValidation = "Overall error indicator for policy validation"
)

//go:embed epub-policy.sch
var policySchema []byte

// Schema returns the embedded policy.
func Schema() []byte { return bytes.Clone(policySchema) }

// Format validates EPUB files.
type Format struct {
	formats.Base
}

var _ formats.Validator = (*Format)(nil)

// New creates the EPUB format.
func New(opts formats.Options) formats.Validator {
	fixed := policy.NewPolicyMap()
	fixed.Add(NoDRMRightsFile, NoDRMRightsFile, "checkForRightsFile")
	fixed.Add(WellFormed, WellFormed, "hasContainer", "hasMimetypeEntry", "hasPackageDocument")

	return &Format{Base: formats.NewBase(formats.Descriptor{
		Name:           Name,
		MimeTypes:      []string{epubMimetype, "application/x-ibooks+zip"},
		Extensions:     []string{".epub", ".ibooks"},
		Fixed:          fixed,
		PolicyCategory: PolicyValidation,
		Schema:         policySchema,
	}, opts)}
}

// ValidationResult implements formats.Validator.
func (f *Format) ValidationResult(ctx context.Context, file string) *schema.CheckResult {
	return f.Validate(ctx, f, file)
}

// Tasks implements formats.Validator.
func (f *Format) Tasks() []supervisor.Task {
	return []supervisor.Task{
		f.FixedTask(NoDRMRightsFile, drmChecks),
		f.FixedTask(WellFormed, wellFormedChecks),
		f.PolicyTask(featureReport),
	}
}

func featureReport(_ context.Context, file string) (policy.ReportSource, error) {
	f, err := Open(file)
	if err != nil {
		return nil, err
	}
	doc, err := f.XML()
	if err != nil {
		return nil, err
	}
	return policy.ParseDocument(bytes.NewReader(doc))
}

func drmChecks(_ context.Context, file string) (*schema.Category, error) {
	f, err := Open(file)
	if err != nil {
		return nil, err
	}
	return schema.NewCategory(NoDRMRightsFile,
		schema.BoolCheck("checkForRightsFile", !f.Rights.Present && !f.Encryption.Present),
	), nil
}

func wellFormedChecks(_ context.Context, file string) (*schema.Category, error) {
	f, err := Open(file)
	if err != nil {
		// Not a zip archive: the container is malformed rather than undeterminable.
		return schema.NewCategory(WellFormed,
			schema.BoolCheck("hasMimetypeEntry", false),
			schema.BoolCheck("hasContainer", false),
			schema.BoolCheck("hasPackageDocument", false),
		), nil
	}
	return schema.NewCategory(WellFormed,
		schema.BoolCheck("hasMimetypeEntry", f.Mimetype.Present && f.Mimetype.Value == epubMimetype),
		schema.BoolCheck("hasContainer", f.Container.Present && f.Container.Rootfiles > 0),
		schema.BoolCheck("hasPackageDocument", f.Package.Present),
	), nil
}

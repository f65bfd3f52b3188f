// Package mobi checks Mobipocket books for well-formedness, DRM and policy conformance.
package mobi

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"io/fs"

	"github.com/openpreserve/flint/internal/formats"
	"github.com/openpreserve/flint/internal/policy"
	"github.com/openpreserve/flint/internal/supervisor"
	"github.com/openpreserve/flint/schema"
)

// Name is the format name.
const Name = "MOBI"

// Category names.
const (
	WellFormed       = "Well formed"
	NoDRMEncryption  = "DRM check"
	PolicyValidation = "Overall error indicator for policy validation"
)

//go:embed mobi-policy.sch
var policySchema []byte

// Schema returns the embedded policy.
func Schema() []byte { return bytes.Clone(policySchema) }

// Format validates MOBI files.
type Format struct {
	formats.Base
}

var _ formats.Validator = (*Format)(nil)

// New creates the MOBI format.
func New(opts formats.Options) formats.Validator {
	fixed := policy.NewPolicyMap()
	fixed.Add(NoDRMEncryption, NoDRMEncryption, "checkForEncryption")
	fixed.Add(WellFormed, WellFormed, "isValid")

	return &Format{Base: formats.NewBase(formats.Descriptor{
		Name:           Name,
		MimeTypes:      []string{"application/x-mobipocket-ebook", "application/vnd.amazon.ebook"},
		Extensions:     []string{".mobi", ".azw", ".azw3", ".prc"},
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
		f.FixedTask(WellFormed, wellFormedChecks),
		f.FixedTask(NoDRMEncryption, drmChecks),
		f.PolicyTask(featureReport),
	}
}

func wellFormedChecks(_ context.Context, file string) (*schema.Category, error) {
	_, err := Open(file)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return nil, err
	}
	return schema.NewCategory(WellFormed, schema.BoolCheck("isValid", err == nil)), nil
}

func drmChecks(_ context.Context, file string) (*schema.Category, error) {
	b, err := Open(file)
	if err != nil {
		return nil, err
	}
	return schema.NewCategory(NoDRMEncryption, schema.BoolCheck("checkForEncryption", !b.Header.HasDRM())), nil
}

func featureReport(_ context.Context, file string) (policy.ReportSource, error) {
	b, err := Open(file)
	if err != nil {
		return nil, err
	}
	doc, err := b.XML()
	if err != nil {
		return nil, err
	}
	return policy.ParseDocument(bytes.NewReader(doc))
}

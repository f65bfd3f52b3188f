// Package pdf checks PDF documents for well-formedness, DRM and policy conformance.
package pdf

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/openpreserve/flint/internal/formats"
	"github.com/openpreserve/flint/internal/policy"
	"github.com/openpreserve/flint/internal/supervisor"
	"github.com/openpreserve/flint/schema"
)

// Name is the format name.
const Name = "PDF"

// Category names.
const (
	WellFormed       = "well-formed"
	NoDRM            = "specific-drm-checks"
	PolicyValidation = "policy-validation"
)

//go:embed pdf-policy.sch
var policySchema []byte

// Schema returns the embedded policy.
func Schema() []byte { return bytes.Clone(policySchema) }

// Format validates PDF files.
type Format struct {
	formats.Base
}

var _ formats.Validator = (*Format)(nil)

// New creates the PDF format.
func New(opts formats.Options) formats.Validator {
	fixed := policy.NewPolicyMap()
	fixed.Add(NoDRM, NoDRM, "checkEncryptDictionary", "checkEncryptionFilter", "checkPermissions")
	fixed.Add(WellFormed, WellFormed, "isValidHeader", "isValidTrailer", "isValidXref", "isValidStructure")

	return &Format{Base: formats.NewBase(formats.Descriptor{
		Name:           Name,
		MimeTypes:      []string{"application/pdf"},
		Extensions:     []string{".pdf"},
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
		f.PolicyTask(featureReport),
		f.FixedTask(NoDRM, drmChecks),
		f.FixedTask(WellFormed, wellFormedChecks),
	}
}

func readFeatures(file string) (*Features, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	return Extract(data), nil
}

func featureReport(_ context.Context, file string) (policy.ReportSource, error) {
	f, err := readFeatures(file)
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
	f, err := readFeatures(file)
	if err != nil {
		return nil, err
	}
	enc := f.Encryption
	standard := !enc.Present || enc.Filter == "Standard"
	return schema.NewCategory(NoDRM,
		schema.BoolCheck("checkEncryptDictionary", !enc.Present),
		schema.BoolCheck("checkEncryptionFilter", standard),
		schema.BoolCheck("checkPermissions", enc.Print && enc.Copy),
	), nil
}

func wellFormedChecks(_ context.Context, file string) (*schema.Category, error) {
	f, err := readFeatures(file)
	if err != nil {
		return nil, err
	}
	return schema.NewCategory(WellFormed,
		schema.BoolCheck("isValidHeader", f.Header.Valid),
		schema.BoolCheck("isValidTrailer", f.Trailer.Valid),
		schema.BoolCheck("isValidXref", f.Xref.Valid),
		schema.BoolCheck("isValidStructure", f.Structure.Valid),
	), nil
}

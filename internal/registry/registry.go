// Package registry maps format names to their constructors. Formats are
// registered explicitly at startup.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/openpreserve/flint/internal/formats"
	"github.com/openpreserve/flint/internal/formats/epub"
	"github.com/openpreserve/flint/internal/formats/mobi"
	"github.com/openpreserve/flint/internal/formats/pdf"
	"github.com/openpreserve/flint/schema"
)

var (
	// ErrUnknownFormat is returned when no format is registered under a name.
	ErrUnknownFormat = errors.New("unknown format")
	// ErrDuplicateFormat is returned when a name is registered twice.
	ErrDuplicateFormat = errors.New("format already registered")
)

// Factory creates a format instance with its own options.
type Factory func(opts formats.Options) formats.Validator

// Registry is an ordered set of format factories.
type Registry struct {
	mu        sync.RWMutex
	order     []string
	factories map[string]Factory
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Default returns a registry holding the built-in formats.
func Default() *Registry {
	r := New()
	r.MustRegister(pdf.Name, pdf.New)
	r.MustRegister(epub.Name, epub.New)
	r.MustRegister(mobi.Name, mobi.New)
	return r
}

// Register adds a factory under a case-insensitive name.
func (r *Registry) Register(name string, f Factory) error {
	key := schema.NormalizeFormat(name)
	if key == "" || f == nil {
		return fmt.Errorf("register %q: empty name or nil factory", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateFormat, key)
	}
	r.factories[key] = f
	r.order = append(r.order, key)
	return nil
}

// MustRegister is Register for use at startup.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Lookup returns the factory of a format.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[schema.NormalizeFormat(name)]
	return f, ok
}

// New creates one format by name.
func (r *Registry) New(name string, opts formats.Options) (formats.Validator, error) {
	f, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}
	return f(opts), nil
}

// Formats creates every registered format, each with the options returned for its name.
func (r *Registry) Formats(optsFor func(name string) formats.Options) []formats.Validator {
	names := r.Names()
	out := make([]formats.Validator, 0, len(names))
	for _, name := range names {
		f, _ := r.Lookup(name)
		out = append(out, f(optsFor(name)))
	}
	return out
}

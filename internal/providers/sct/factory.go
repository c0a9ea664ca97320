package sct

import (
	"fmt"
	"os"

	"github.com/wardle/go-terminology/internal/opcontext"
	"github.com/wardle/go-terminology/internal/provider"
	"github.com/wardle/go-terminology/internal/snomedstore"
)

// Factory yields SNOMED providers for one loaded edition. The store is
// read-only and shared freely; Build is cheap.
type Factory struct {
	svc *snomedstore.Service
}

// NewFactory wraps an already loaded store.
func NewFactory(store *snomedstore.Store) *Factory {
	return &Factory{svc: snomedstore.NewService(store)}
}

// OpenFactory loads a container from path.
func OpenFactory(path string) (*Factory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sct: %w", err)
	}
	defer f.Close()
	store, err := snomedstore.Load(f)
	if err != nil {
		return nil, err
	}
	return NewFactory(store), nil
}

// System returns the SNOMED system URI.
func (f *Factory) System() string { return SystemURI }

// Version returns the edition's fully-qualified version URI.
func (f *Factory) Version() string { return f.svc.Store().VersionURI }

// Load is a no-op: the container was parsed when the factory was opened.
func (f *Factory) Load() error { return nil }

// Build yields a provider bound to ctx.
func (f *Factory) Build(ctx *opcontext.Context, supplements []*provider.Supplement) (provider.Provider, error) {
	return New(f.svc, ctx, supplements), nil
}

// Close releases nothing; the store is plain memory.
func (f *Factory) Close() error { return nil }

// ImplicitValueSets names the implicit value-set forms the SNOMED system
// materialises.
func (f *Factory) ImplicitValueSets() []string {
	return []string{
		SystemURI + "?fhir_vs",
		SystemURI + "?fhir_vs=isa/[concept]",
		SystemURI + "?fhir_vs=refset/[refset]",
		SystemURI + "?fhir_vs=ecl/[ecl]",
	}
}

// ImplicitConceptMaps names the implicit concept maps of the system.
func (f *Factory) ImplicitConceptMaps() []string {
	return []string{SystemURI + "?fhir_cm=900000000000497000"}
}

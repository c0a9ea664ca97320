// Package registry keys provider factories by system URI and version,
// applying the version-selection rules when a caller asks for
// `(system, v)` and composing supplements into the providers it yields.
package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/wardle/go-terminology/internal/opcontext"
	"github.com/wardle/go-terminology/internal/provider"
)

// Factory yields providers for one system at one version. Load-time work
// (small lookup tables, counts, version strings) happens once in Load;
// Build is cheap and called per request.
type Factory interface {
	System() string
	Version() string
	// Load performs startup work; called once at registration.
	Load() error
	// Build yields a provider bound to an operation context. The
	// supplement list is immutable and shared by reference.
	Build(ctx *opcontext.Context, supplements []*provider.Supplement) (provider.Provider, error)
	Close() error
}

// ImplicitValueSetSource is the optional factory hook materialising the
// implicit value sets of its system (e.g. SNOMED `?fhir_vs=isa/...`).
type ImplicitValueSetSource interface {
	ImplicitValueSets() []string
}

// ImplicitConceptMapSource is the optional factory hook materialising the
// implicit concept maps of its system.
type ImplicitConceptMapSource interface {
	ImplicitConceptMaps() []string
}

// ErrDuplicateVersion is returned when two factories register the same
// system and fully-qualified version.
var ErrDuplicateVersion = errors.New("registry: duplicate system version")

// ErrNoFactory is returned when no factory matches a requested system.
var ErrNoFactory = errors.New("registry: no factory for system")

type registration struct {
	factory Factory
	uses    atomic.Int64
}

// Registry is the versioned factory registry. Registration happens at
// startup; lookups after that are read-only and need no synchronisation
// beyond the registry's own map guard.
type Registry struct {
	mu        sync.RWMutex
	factories map[string][]*registration

	supplements []*provider.Supplement
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{factories: make(map[string][]*registration)}
}

// Register loads a factory and adds it to the registry. A duplicate
// fully-qualified version for the same system is rejected.
func (r *Registry) Register(f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reg := range r.factories[f.System()] {
		if reg.factory.Version() == f.Version() {
			return fmt.Errorf("%w: %s|%s", ErrDuplicateVersion, f.System(), f.Version())
		}
	}
	if err := f.Load(); err != nil {
		return fmt.Errorf("registry: loading %s|%s: %w", f.System(), f.Version(), err)
	}
	r.factories[f.System()] = append(r.factories[f.System()], &registration{factory: f})
	return nil
}

// AddSupplement registers a supplement overlay; providers built after
// this call see it when its URL matches their system.
func (r *Registry) AddSupplement(s *provider.Supplement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.supplements = append(r.supplements, s)
}

// Systems lists the registered system URIs.
func (r *Registry) Systems() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for system := range r.factories {
		out = append(out, system)
	}
	return out
}

// Provider selects a factory for (system, version) and yields a provider
// bound to ctx. Selection order: exact fully-qualified version; a
// more-detailed variant of the factory's version; partial semver
// (major.minor) agreement; a default version rule from the request; the
// factory's own default (the registration whose version is empty, else
// the first registered).
func (r *Registry) Provider(ctx *opcontext.Context, system, version string) (provider.Provider, error) {
	version, err := ctx.ResolveVersion(system, version)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrVersionMismatch, err)
	}
	r.mu.RLock()
	regs := r.factories[system]
	supplements := r.supplementsFor(system)
	r.mu.RUnlock()
	if len(regs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFactory, system)
	}
	reg := selectVersion(regs, version)
	if reg == nil {
		return nil, fmt.Errorf("registry: no factory for %s version %q", system, version)
	}
	reg.uses.Add(1)
	return reg.factory.Build(ctx, supplements)
}

// UseCount reports how many providers a registered factory has yielded.
func (r *Registry) UseCount(system, version string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, reg := range r.factories[system] {
		if reg.factory.Version() == version {
			return reg.uses.Load()
		}
	}
	return 0
}

// Close closes every registered factory.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, regs := range r.factories {
		for _, reg := range regs {
			if err := reg.factory.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Registry) supplementsFor(system string) []*provider.Supplement {
	var out []*provider.Supplement
	for _, s := range r.supplements {
		if s.URL == system {
			out = append(out, s)
		}
	}
	return out
}

func selectVersion(regs []*registration, version string) *registration {
	if version == "" {
		for _, reg := range regs {
			if reg.factory.Version() == "" {
				return reg
			}
		}
		return regs[0]
	}
	// 1. exact fully-qualified match
	for _, reg := range regs {
		if reg.factory.Version() == version {
			return reg
		}
	}
	// 2. more-detailed variant: the requested version extends the
	// factory's version prefix up to "/version/" (SNOMED edition URIs)
	for _, reg := range regs {
		fv := reg.factory.Version()
		if prefix := versionPrefix(fv); prefix != "" && strings.HasPrefix(version, prefix) {
			return reg
		}
		if prefix := versionPrefix(version); prefix != "" && strings.HasPrefix(fv, prefix) {
			return reg
		}
	}
	// 3. partial semver: major.minor agreement
	for _, reg := range regs {
		if semverMajorMinor(reg.factory.Version()) != "" &&
			semverMajorMinor(reg.factory.Version()) == semverMajorMinor(version) {
			return reg
		}
	}
	return nil
}

// versionPrefix returns the edition prefix of a SNOMED-style version URI,
// the part before "/version/", or empty when the version has no such
// segment.
func versionPrefix(v string) string {
	if i := strings.Index(v, "/version/"); i > 0 {
		return v[:i]
	}
	return ""
}

// semverMajorMinor returns "major.minor" of a dotted version, or empty.
func semverMajorMinor(v string) string {
	parts := strings.Split(v, ".")
	if len(parts) < 2 {
		return ""
	}
	return parts[0] + "." + parts[1]
}

// Package provider defines the uniform contract every code system
// implements - metadata, lookup, designations, properties, the filter
// lifecycle, iteration, subsumption and translations - plus the shared
// filter-execution state machine instantiated identically by all stores.
//
// Consumers must be able to swap one provider for another without
// case-analysis on system URI beyond initial selection; concept handles
// are tagged variants rather than an inheritance hierarchy.
package provider

import (
	"github.com/wardle/go-terminology/internal/opcontext"
)

// Handle is an opaque provider-owned context for a resolved code. It is
// created by Locate, surrendered to the caller for one request, and never
// stored beyond it. Display, Designations and the other per-concept
// operations accept only a Handle issued by the same provider.
type Handle interface {
	// HandleCode returns the code this handle resolves.
	HandleCode() string
}

// StringHandle is the trivial handle for systems whose concepts carry no
// resolved state beyond the code itself (URI, MIME, language tags).
type StringHandle string

// HandleCode implements Handle.
func (h StringHandle) HandleCode() string { return string(h) }

// SQLRowHandle is the handle for relational-backed stores: a code plus
// the row fields pre-materialised at locate time.
type SQLRowHandle struct {
	Code       string
	Display    string
	Domain     string
	Class      string
	Vocabulary string
	Active     bool
	// Extra carries provider-specific columns keyed by name.
	Extra map[string]string
}

// HandleCode implements Handle.
func (h *SQLRowHandle) HandleCode() string { return h.Code }

// SubsumptionOutcome is the four-valued result of SubsumesTest.
type SubsumptionOutcome string

const (
	Equivalent  SubsumptionOutcome = "equivalent"
	Subsumes    SubsumptionOutcome = "subsumes"
	SubsumedBy  SubsumptionOutcome = "subsumed-by"
	NotSubsumed SubsumptionOutcome = "not-subsumed"
)

// Property is one named concept property.
type Property struct {
	Name  string
	Value string
	Type  string
}

// Extension is one extension attached to a concept or designation.
type Extension struct {
	URL   string
	Value string
}

// Translation is one mapping of a coding into a target system.
type Translation struct {
	URI          string
	Code         string
	Display      string
	Relationship string
	Map          string
}

// Coding is a system/code pair presented for translation.
type Coding struct {
	System  string
	Version string
	Code    string
}

// Provider is the capability interface every code system implements.
type Provider interface {
	// System returns the canonical system URI.
	System() string
	// Version returns the provider's fully-qualified version, or empty.
	Version() string
	// Name returns the code system's short name.
	Name() string
	// Description returns a human-oriented description.
	Description() string
	// TotalCount returns the number of concepts, or -1 when unbounded.
	TotalCount() int
	// IsCaseSensitive reports whether codes compare case-sensitively.
	IsCaseSensitive() bool
	// HasParents reports whether the system carries a hierarchy.
	HasParents() bool
	// IsNotClosed reports whether the value set is grammar-based and
	// cannot be enumerated; consumers must not attempt expansion.
	IsNotClosed() bool

	// Locate resolves a code. An unknown code returns a nil handle and a
	// human-readable message; Locate never fails with an error.
	Locate(code string) (Handle, string)
	// Code returns the handle's code, case-normalised when the system is
	// case-insensitive.
	Code(h Handle) string
	// Display returns the preferred display for the operation context's
	// language chain.
	Display(h Handle, ctx *opcontext.Context) string
	// Definition returns the formal definition, or empty.
	Definition(h Handle) string
	// IsAbstract reports whether the concept is abstract (not selectable).
	IsAbstract(h Handle) bool
	// IsInactive reports whether the concept is inactive.
	IsInactive(h Handle) bool
	// IsDeprecated reports whether the concept is deprecated.
	IsDeprecated(h Handle) bool
	// Status returns the concept's status code, or empty.
	Status(h Handle) string
	// ItemWeight returns the concept's ordinal item weight, or empty.
	ItemWeight(h Handle) string
	// Parent returns the primary parent code, or empty.
	Parent(h Handle) string
	// Designations collects the concept's designations, native and
	// supplement-contributed, into d.
	Designations(h Handle, ctx *opcontext.Context, d *opcontext.Designations)
	// Properties returns the concept's properties, optionally restricted
	// to the named subset (nil means all).
	Properties(h Handle, names []string) []Property
	// Extensions returns the concept's extensions.
	Extensions(h Handle) []Extension

	// SubsumesTest relates two codes. Stores without a hierarchy return
	// ErrSubsumptionUnsupported.
	SubsumesTest(a, b string) (SubsumptionOutcome, error)

	// Iterator opens a cursor over h's children, or over all concepts
	// when h is nil. A nil cursor means the provider cannot iterate.
	Iterator(h Handle) Cursor
	// NextContext advances the cursor; nil when exhausted.
	NextContext(c Cursor) Handle

	// GetPrepContext creates a filter-execution context; iterate marks
	// that the composed sets will be iterated rather than probed.
	GetPrepContext(iterate bool) *Prep
	// DoesFilter reports whether Filter would accept the triple.
	DoesFilter(prop, op, value string) bool
	// Filter pushes one (property, op, value) filter onto prep.
	Filter(prep *Prep, prop, op, value string) error
	// SearchFilter pushes a free-text filter onto prep.
	SearchFilter(prep *Prep, text string, exact bool) error
	// SpecialFilter pushes a provider-specific filter (implicit value-set
	// forms and the like) onto prep.
	SpecialFilter(prep *Prep, name string, args []string) error
	// ExecuteFilters finalises the composed filters into filter sets.
	ExecuteFilters(prep *Prep) ([]*FilterSet, error)
	// FilterSize returns the concept count of a set, or -1 if unknown.
	FilterSize(set *FilterSet) int
	// FilterMore advances iteration, reporting whether a concept is
	// available via FilterConcept.
	FilterMore(set *FilterSet) (bool, error)
	// FilterConcept returns the concept at the iteration cursor.
	FilterConcept(set *FilterSet) Handle
	// FilterLocate resolves code within the set (Executed, non-iterate
	// mode); a miss returns nil and a message.
	FilterLocate(set *FilterSet, code string) (Handle, string)
	// FilterCheck reports whether the located handle is in the set.
	FilterCheck(set *FilterSet, h Handle) (bool, error)
	// FilterFinish releases the filter-execution context.
	FilterFinish(prep *Prep)

	// Translations maps coding into targetSystem.
	Translations(coding Coding, targetSystem string) ([]Translation, error)

	// Close releases per-provider resources (database connections).
	Close() error
}

// Cursor is an opaque iteration cursor issued by Iterator.
type Cursor interface{}

package provider

import "github.com/wardle/go-terminology/internal/opcontext"

// Base supplies the no-op and metadata defaults of the provider contract
// so each store only implements the operations its system supports.
// Embedding Base keeps the flat, hierarchy-less stores small: a provider
// that never overrides SubsumesTest correctly reports subsumption as
// unsupported, one that never overrides Iterator reports that it cannot
// iterate.
type Base struct {
	SystemURI      string
	VersionStr     string
	NameStr        string
	DescriptionStr string
	Total          int
	CaseSensitive  bool
	WithParents    bool
	NotClosed      bool

	// Supps is the immutable supplement list shared by reference.
	Supps []*Supplement
}

func (b *Base) System() string        { return b.SystemURI }
func (b *Base) Version() string       { return b.VersionStr }
func (b *Base) Name() string          { return b.NameStr }
func (b *Base) Description() string   { return b.DescriptionStr }
func (b *Base) TotalCount() int       { return b.Total }
func (b *Base) IsCaseSensitive() bool { return b.CaseSensitive }
func (b *Base) HasParents() bool      { return b.WithParents }
func (b *Base) IsNotClosed() bool     { return b.NotClosed }

func (b *Base) Code(h Handle) string {
	if h == nil {
		return ""
	}
	return h.HandleCode()
}

func (b *Base) Definition(Handle) string   { return "" }
func (b *Base) IsAbstract(Handle) bool     { return false }
func (b *Base) IsInactive(Handle) bool     { return false }
func (b *Base) IsDeprecated(Handle) bool   { return false }
func (b *Base) Status(Handle) string       { return "" }
func (b *Base) ItemWeight(Handle) string   { return "" }
func (b *Base) Parent(Handle) string       { return "" }
func (b *Base) Extensions(Handle) []Extension { return nil }

// Designations contributes the supplement overlays; providers with
// native designations override and call CollectDesignations themselves.
func (b *Base) Designations(h Handle, ctx *opcontext.Context, d *opcontext.Designations) {
	if h != nil {
		CollectDesignations(b.Supps, h.HandleCode(), d)
	}
}

// Properties returns only supplement-contributed properties by default.
func (b *Base) Properties(h Handle, names []string) []Property {
	if h == nil {
		return nil
	}
	return FilterProperties(SupplementProperties(b.Supps, h.HandleCode()), names)
}

// SubsumesTest reports subsumption unsupported; hierarchical stores
// override.
func (b *Base) SubsumesTest(a, bCode string) (SubsumptionOutcome, error) {
	return NotSubsumed, ErrSubsumptionUnsupported
}

// Iterator reports the provider cannot iterate; enumerable stores
// override.
func (b *Base) Iterator(Handle) Cursor    { return nil }
func (b *Base) NextContext(Cursor) Handle { return nil }

func (b *Base) GetPrepContext(iterate bool) *Prep { return NewPrep(iterate) }

// DoesFilter rejects every triple by default.
func (b *Base) DoesFilter(prop, op, value string) bool { return false }

func (b *Base) Filter(prep *Prep, prop, op, value string) error {
	return ErrFilterNotSupported
}

func (b *Base) SearchFilter(prep *Prep, text string, exact bool) error {
	return ErrFilterNotSupported
}

func (b *Base) SpecialFilter(prep *Prep, name string, args []string) error {
	return ErrFilterNotSupported
}

// ExecuteFilters finalises an empty filter list into no sets; filterable
// providers override.
func (b *Base) ExecuteFilters(prep *Prep) ([]*FilterSet, error) {
	if err := prep.MarkExecuted(nil); err != nil {
		return nil, err
	}
	return nil, nil
}

func (b *Base) FilterSize(*FilterSet) int { return -1 }

func (b *Base) FilterMore(*FilterSet) (bool, error) {
	return false, nil
}

func (b *Base) FilterConcept(*FilterSet) Handle { return nil }

func (b *Base) FilterLocate(set *FilterSet, code string) (Handle, string) {
	return nil, "filtering is not supported by this code system"
}

func (b *Base) FilterCheck(set *FilterSet, h Handle) (bool, error) {
	return false, ErrFilterNotSupported
}

func (b *Base) FilterFinish(prep *Prep) {
	if prep != nil {
		prep.Finish()
	}
}

func (b *Base) Translations(coding Coding, targetSystem string) ([]Translation, error) {
	return nil, nil
}

func (b *Base) Close() error { return nil }

// FilterProperties restricts props to the named subset; nil names means
// all.
func FilterProperties(props []Property, names []string) []Property {
	if names == nil {
		return props
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	out := make([]Property, 0, len(props))
	for _, p := range props {
		if want[p.Name] {
			out = append(out, p)
		}
	}
	return out
}

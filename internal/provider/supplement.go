package provider

import "github.com/wardle/go-terminology/internal/opcontext"

// SupplementConcept is the overlay a supplement contributes to one code:
// an optional display plus extra designations and properties.
type SupplementConcept struct {
	Display      string
	Language     string
	Designations []opcontext.Designation
	Properties   []Property
}

// Supplement is a read-only overlay code system whose URL matches a base
// system. Supplement lists are immutable after construction and shared by
// reference between provider instances.
type Supplement struct {
	URL      string
	Version  string
	Language string
	Concepts map[string]SupplementConcept
}

// Concept returns the overlay for code, if any.
func (s *Supplement) Concept(code string) (SupplementConcept, bool) {
	c, ok := s.Concepts[code]
	return c, ok
}

// SelectDisplay applies the display-selection order: a matching
// supplement designation in the requested language chain, then the
// provider's native display in the requested language, then the native
// display in any language, trimmed.
func SelectDisplay(ctx *opcontext.Context, supplements []*Supplement, code, nativeDisplay, nativeLang string) string {
	if ctx.HasLanguagePreference() {
		for _, s := range supplements {
			sc, ok := s.Concept(code)
			if !ok {
				continue
			}
			if sc.Display != "" && sc.Language != "" && ctx.LanguageMatches(sc.Language) {
				return sc.Display
			}
			for _, des := range sc.Designations {
				if des.Language != "" && ctx.LanguageMatches(des.Language) && des.Value != "" {
					return des.Value
				}
			}
		}
		if nativeLang != "" && ctx.LanguageMatches(nativeLang) {
			return nativeDisplay
		}
	}
	return trimDisplay(nativeDisplay)
}

// CollectDesignations merges supplement designations for code into d
// after the provider's native contributions.
func CollectDesignations(supplements []*Supplement, code string, d *opcontext.Designations) {
	for _, s := range supplements {
		sc, ok := s.Concept(code)
		if !ok {
			continue
		}
		if sc.Display != "" {
			d.Add(opcontext.Designation{Preferred: true, Language: sc.Language, Value: sc.Display})
		}
		for _, des := range sc.Designations {
			d.Add(des)
		}
	}
}

// SupplementProperties returns the properties supplements contribute to
// code.
func SupplementProperties(supplements []*Supplement, code string) []Property {
	var out []Property
	for _, s := range supplements {
		if sc, ok := s.Concept(code); ok {
			out = append(out, sc.Properties...)
		}
	}
	return out
}

func trimDisplay(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}

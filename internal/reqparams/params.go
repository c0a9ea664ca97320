// Package reqparams models the request-parameter surface the terminology
// core consumes: version rules, display languages, expansion flags,
// designation and property filters, text search and pagination.
// Unrecognised parameters pass through unchanged.
package reqparams

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wardle/go-terminology/internal/opcontext"
)

// Params is the parsed parameter set of one request.
type Params struct {
	VersionRules []opcontext.VersionRule

	DisplayLanguage string
	Designations    []string
	Properties      []string

	ActiveOnly               bool
	ExcludeNested            bool
	LimitedExpansion         bool
	ExcludeNotForUI          bool
	ExcludePostCoordinated   bool
	IncludeDesignations      bool
	IncludeDefinition        bool
	DefaultToLatestVersion   bool
	IncompleteOK             bool
	LenientDisplayValidation bool
	MembershipOnly           bool

	Filter string

	Count  int
	Offset int
	Limit  int

	// NoCache forces a fresh expansion identity.
	NoCache bool

	// Passthrough preserves every unrecognised parameter unchanged.
	Passthrough map[string][]string
}

// boolFlags maps each recognised boolean option to its destination.
func (p *Params) boolFlags() map[string]*bool {
	return map[string]*bool{
		"activeOnly":                 &p.ActiveOnly,
		"excludeNested":              &p.ExcludeNested,
		"limitedExpansion":           &p.LimitedExpansion,
		"excludeNotForUI":            &p.ExcludeNotForUI,
		"excludePostCoordinated":     &p.ExcludePostCoordinated,
		"includeDesignations":        &p.IncludeDesignations,
		"includeDefinition":          &p.IncludeDefinition,
		"default-to-latest-version":  &p.DefaultToLatestVersion,
		"incomplete-ok":              &p.IncompleteOK,
		"lenient-display-validation": &p.LenientDisplayValidation,
		"valueset-membership-only":   &p.MembershipOnly,
		"no-cache":                   &p.NoCache,
	}
}

// versionRuleModes maps the version parameters to their rule modes; the
// valueset-version trio registers the same rule kinds.
var versionRuleModes = map[string]opcontext.VersionRuleMode{
	"system-version":                opcontext.VersionDefault,
	"check-system-version":          opcontext.VersionCheck,
	"force-system-version":          opcontext.VersionOverride,
	"default-valueset-version":      opcontext.VersionDefault,
	"check-valueset-version":        opcontext.VersionCheck,
	"force-valueset-version":        opcontext.VersionOverride,
}

// Parse reads the recognised parameters out of values (a decoded query or
// Parameters resource), leaving the rest in Passthrough.
func Parse(values map[string][]string) (*Params, error) {
	p := &Params{Count: -1, Limit: -1, Passthrough: make(map[string][]string)}
	flags := p.boolFlags()
	for name, vals := range values {
		switch {
		case name == "displayLanguage":
			if len(vals) > 0 {
				p.DisplayLanguage = vals[0]
			}
		case name == "designation":
			p.Designations = append(p.Designations, vals...)
		case name == "property":
			p.Properties = append(p.Properties, vals...)
		case name == "filter" || name == "term":
			if len(vals) > 0 {
				p.Filter = vals[0]
			}
		case name == "count" || name == "offset" || name == "limit":
			if len(vals) == 0 {
				continue
			}
			n, err := strconv.Atoi(vals[0])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("reqparams: invalid %s %q", name, vals[0])
			}
			switch name {
			case "count":
				p.Count = n
			case "offset":
				p.Offset = n
			case "limit":
				p.Limit = n
			}
		default:
			if mode, ok := versionRuleModes[name]; ok {
				for _, v := range vals {
					rule, err := parseVersionRule(v, mode)
					if err != nil {
						return nil, err
					}
					p.VersionRules = append(p.VersionRules, rule)
				}
				continue
			}
			if dst, ok := flags[name]; ok {
				*dst = len(vals) == 0 || parseBool(vals[0])
				continue
			}
			p.Passthrough[name] = vals
		}
	}
	return p, nil
}

// parseVersionRule splits "system|version".
func parseVersionRule(v string, mode opcontext.VersionRuleMode) (opcontext.VersionRule, error) {
	i := strings.LastIndexByte(v, '|')
	if i <= 0 || i == len(v)-1 {
		return opcontext.VersionRule{}, fmt.Errorf("reqparams: version rule %q is not of form system|version", v)
	}
	return opcontext.VersionRule{System: v[:i], Version: v[i+1:], Mode: mode}, nil
}

func parseBool(v string) bool {
	return v == "true" || v == "1" || v == "yes"
}

// Apply registers the parsed languages and version rules on an operation
// context.
func (p *Params) Apply(ctx *opcontext.Context) {
	if p.DisplayLanguage != "" {
		ctx.SetDisplayLanguages(p.DisplayLanguage)
	}
	for _, rule := range p.VersionRules {
		ctx.AddVersionRule(rule)
	}
}

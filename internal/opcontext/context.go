// Package opcontext carries per-request operation state consumed by every
// provider: the requested display-language chain, system-version rules,
// the i18n translator and the cancellation flag. Language negotiation and
// designation aggregation live here so providers share one implementation.
package opcontext

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// VersionRuleMode distinguishes the three version-rule registrations of
// the request-parameter surface.
type VersionRuleMode int

const (
	// VersionDefault supplies a version used when the caller names none.
	VersionDefault VersionRuleMode = iota
	// VersionCheck requires the selected version to match, else the
	// operation fails with a version mismatch.
	VersionCheck
	// VersionOverride forces the version regardless of what the caller
	// named.
	VersionOverride
)

func (m VersionRuleMode) String() string {
	switch m {
	case VersionDefault:
		return "default"
	case VersionCheck:
		return "check"
	case VersionOverride:
		return "override"
	}
	return "?"
}

// VersionRule is one system-version rule of mode default, check or
// override.
type VersionRule struct {
	System  string
	Version string
	Mode    VersionRuleMode
}

// Context is the operation context bound to one request.
type Context struct {
	ctx context.Context

	displayLanguages []language.Tag
	httpLanguages    []language.Tag
	translator       *Translator
	versionRules     map[string][]VersionRule
}

// Background returns an operation context with no languages, rules or
// deadline, suitable for startup work and tests.
func Background() *Context {
	return New(context.Background())
}

// New creates an operation context carrying ctx's cancellation and
// deadline.
func New(ctx context.Context) *Context {
	return &Context{
		ctx:          ctx,
		translator:   NewTranslator(nil),
		versionRules: make(map[string][]VersionRule),
	}
}

// Ctx returns the request's cancellation context. Long-running operations
// consult it at each outer-loop iteration.
func (c *Context) Ctx() context.Context { return c.ctx }

// Err surfaces the request's cancellation or deadline state.
func (c *Context) Err() error { return c.ctx.Err() }

// Translator returns the i18n translator.
func (c *Context) Translator() *Translator { return c.translator }

// SetTranslator replaces the i18n translator.
func (c *Context) SetTranslator(t *Translator) { c.translator = t }

// SetDisplayLanguages sets the requested-display-language chain from a
// comma-separated or repeated header-style value. Unparseable tags are
// dropped.
func (c *Context) SetDisplayLanguages(chain ...string) {
	c.displayLanguages = parseChain(chain)
}

// SetHTTPLanguages sets the HTTP Accept-Language chain.
func (c *Context) SetHTTPLanguages(chain ...string) {
	c.httpLanguages = parseChain(chain)
}

func parseChain(chain []string) []language.Tag {
	var out []language.Tag
	for _, raw := range chain {
		for _, piece := range strings.Split(raw, ",") {
			piece = strings.TrimSpace(piece)
			if i := strings.IndexByte(piece, ';'); i >= 0 { // strip quality weights
				piece = piece[:i]
			}
			if piece == "" {
				continue
			}
			tag, err := language.Parse(piece)
			if err != nil {
				continue
			}
			out = append(out, tag)
		}
	}
	return out
}

// DisplayLanguages returns the ordered requested-display-language chain,
// falling back to the HTTP chain when none was requested explicitly.
func (c *Context) DisplayLanguages() []language.Tag {
	if len(c.displayLanguages) > 0 {
		return c.displayLanguages
	}
	return c.httpLanguages
}

// HasLanguagePreference reports whether any language chain was supplied.
func (c *Context) HasLanguagePreference() bool {
	return len(c.displayLanguages) > 0 || len(c.httpLanguages) > 0
}

// LanguageMatches reports whether any requested language partially
// matches tag, comparing with regions collapsed: "en" matches "en-GB" and
// "en-US" but not "de".
func (c *Context) LanguageMatches(tag string) bool {
	parsed, err := language.Parse(tag)
	if err != nil {
		return false
	}
	base, _ := parsed.Base()
	for _, want := range c.DisplayLanguages() {
		wantBase, _ := want.Base()
		if wantBase == base {
			return true
		}
	}
	return false
}

// AddVersionRule registers a system-version rule.
func (c *Context) AddVersionRule(rule VersionRule) {
	c.versionRules[rule.System] = append(c.versionRules[rule.System], rule)
}

// VersionRules returns the rules registered for system.
func (c *Context) VersionRules(system string) []VersionRule {
	return c.versionRules[system]
}

// ResolveVersion applies the version rules for system to the
// caller-requested version: an override rule wins, a default rule fills
// an empty request, and a check rule that disagrees with the outcome
// returns an error naming the rule.
func (c *Context) ResolveVersion(system, requested string) (string, error) {
	version := requested
	for _, rule := range c.versionRules[system] {
		if rule.Mode == VersionOverride {
			version = rule.Version
		}
	}
	if version == "" {
		for _, rule := range c.versionRules[system] {
			if rule.Mode == VersionDefault {
				version = rule.Version
				break
			}
		}
	}
	for _, rule := range c.versionRules[system] {
		if rule.Mode == VersionCheck && version != "" && version != rule.Version {
			return "", fmt.Errorf("version %q of system %s violates check-system-version rule requiring %q",
				version, system, rule.Version)
		}
	}
	return version, nil
}

// Translator is a minimal key-based message translator; a missing key
// falls through to the key itself so untranslated deployments still
// produce readable messages.
type Translator struct {
	messages map[string]string
}

// NewTranslator builds a translator over a message table.
func NewTranslator(messages map[string]string) *Translator {
	return &Translator{messages: messages}
}

// Translate formats the message registered under key, or the key itself.
func (t *Translator) Translate(key string, args ...interface{}) string {
	format, ok := t.messages[key]
	if !ok {
		format = key
	}
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
